// Package api provides HTTP handlers for the consultation API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/skinconsult/internal/consult"
	"github.com/ashureev/skinconsult/internal/dialogue"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/session"
)

// Consultant is the service behind the chat endpoints. *consult.Service
// satisfies it.
type Consultant interface {
	StartSession(ctx context.Context, userName string) (consult.Started, error)
	SendMessage(ctx context.Context, sessionID string, in dialogue.Input) (dialogue.Reply, error)
	History(ctx context.Context, sessionID string) ([]domain.StoredMessage, error)
	EndSession(ctx context.Context, sessionID string) (domain.Snapshot, error)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a size-limited JSON body into v and writes the error
// response itself when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// ReplyPayload is the wire form of a bot reply, shared by HTTP and websocket.
type ReplyPayload struct {
	SessionID  string   `json:"sessionId"`
	Text       string   `json:"text"`
	HasChoices bool     `json:"hasChoices"`
	Choices    []string `json:"choices,omitempty"`
	Step       string   `json:"step"`
	Intent     string   `json:"intent,omitempty"`
}

func replyPayload(sessionID string, r dialogue.Reply) ReplyPayload {
	return ReplyPayload{
		SessionID:  sessionID,
		Text:       r.Text,
		HasChoices: r.HasChoices(),
		Choices:    r.Choices,
		Step:       string(r.Step),
		Intent:     string(r.Intent),
	}
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
