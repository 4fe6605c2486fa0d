package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/skinconsult/internal/dialogue"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/identity"
)

const defaultMaxRequestBodySize = 16 << 20

// ChatConfig tunes the chat handler.
type ChatConfig struct {
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MaxRequestBodySize int64
	// AllowedOrigin is checked on websocket upgrades; "" or "*" allows any.
	AllowedOrigin string
}

// ChatHandler serves the consultation endpoints.
type ChatHandler struct {
	svc     Consultant
	limiter *RateLimiter
	maxBody int64
	origin  string
	logger  *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc Consultant, cfg ChatConfig, logger *slog.Logger) *ChatHandler {
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		svc:     svc,
		limiter: NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		maxBody: cfg.MaxRequestBodySize,
		origin:  cfg.AllowedOrigin,
		logger:  logger,
	}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/start-session", h.StartSession)
		r.Post("/send-message", h.SendMessage)
		r.Get("/history", h.History)
		r.Post("/end-session", h.EndSession)
	})
	r.Get("/ws/chat", h.ServeWS)
}

// Close releases handler resources.
func (h *ChatHandler) Close() {
	h.limiter.Close()
}

type startSessionRequest struct {
	UserName string `json:"userName"`
}

type startSessionResponse struct {
	SessionID    string `json:"sessionId"`
	FirstMessage string `json:"firstMessage"`
}

// StartSession opens a consultation.
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, h.maxBody, &req) {
		return
	}

	started, err := h.svc.StartSession(r.Context(), req.UserName)
	if err != nil {
		h.logger.Error("Failed to start session", "error", err, "request_id", chiMiddleware.GetReqID(r.Context()))
		status, msg := statusFor(err)
		Error(w, status, msg)
		return
	}

	JSON(w, http.StatusOK, startSessionResponse{
		SessionID:    started.SessionID,
		FirstMessage: started.Reply.Text,
	})
}

// MessageRequest is one user message, over HTTP or websocket.
type MessageRequest struct {
	SessionID     string          `json:"sessionId"`
	Text          string          `json:"text"`
	Image         string          `json:"image,omitempty"`
	ImageMimeType string          `json:"imageMimeType,omitempty"`
	Analysis      json.RawMessage `json:"analysis,omitempty"`
}

// Input converts the request into an engine input. The analysis may be sent
// as a JSON object or as a string containing JSON.
func (m MessageRequest) Input() dialogue.Input {
	in := dialogue.Input{
		Text:          strings.TrimSpace(m.Text),
		ImageBase64:   m.Image,
		ImageMimeType: m.ImageMimeType,
	}
	raw := strings.TrimSpace(string(m.Analysis))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(m.Analysis, &s); err == nil {
			in.Analysis = s
		}
	default:
		in.Analysis = raw
	}
	return in
}

func (m MessageRequest) empty() bool {
	in := m.Input()
	return in.Text == "" && in.ImageBase64 == "" && in.Analysis == ""
}

// SendMessage runs one turn.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeBody(w, r, h.maxBody, &req) {
		return
	}
	sessionID := identity.SanitizeSessionID(req.SessionID)
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.empty() {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if !h.limiter.Allow(h.limitKey(r, sessionID)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	reply, err := h.svc.SendMessage(r.Context(), sessionID, req.Input())
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Failed to handle message", "error", err, "session_id", sessionID)
		}
		Error(w, status, msg)
		return
	}
	JSON(w, http.StatusOK, replyPayload(sessionID, reply))
}

func (h *ChatHandler) limitKey(r *http.Request, sessionID string) string {
	if v := identity.VisitorIDFromContext(r.Context()); v != "" {
		return v
	}
	return "session:" + sessionID
}

type historyResponse struct {
	SessionID string                 `json:"sessionId"`
	Messages  []domain.StoredMessage `json:"messages"`
}

// History returns the message log of a session.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SanitizeSessionID(r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	msgs, err := h.svc.History(r.Context(), sessionID)
	if err != nil {
		status, msg := statusFor(err)
		Error(w, status, msg)
		return
	}
	if msgs == nil {
		msgs = []domain.StoredMessage{}
	}
	JSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Messages: msgs})
}

type endSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type endSessionResponse struct {
	Status   string          `json:"status"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

// EndSession closes a consultation.
func (h *ChatHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if !decodeBody(w, r, h.maxBody, &req) {
		return
	}
	sessionID := identity.SanitizeSessionID(req.SessionID)
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	snap, err := h.svc.EndSession(r.Context(), sessionID)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Failed to end session", "error", err, "session_id", sessionID)
		}
		Error(w, status, msg)
		return
	}
	JSON(w, http.StatusOK, endSessionResponse{Status: "ended", Snapshot: snap})
}
