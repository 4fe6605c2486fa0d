package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/skinconsult/internal/identity"
)

const wsWriteTimeout = 10 * time.Second

// wsFrame is an inbound websocket frame. Type is "message" (default) or "ping".
type wsFrame struct {
	Type string `json:"type,omitempty"`
	MessageRequest
}

// ServeWS upgrades to a websocket and runs one turn per inbound frame.
// The session id comes from the X-Session-ID header or session_id query.
func (h *ChatHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if !h.checkOrigin(r) {
		Error(w, http.StatusForbidden, "origin not allowed")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()
	ws.SetReadLimit(h.maxBody)

	ctx := r.Context()
	key := h.limitKey(r, sessionID)
	h.logger.Info("Chat socket opened", "session_id", sessionID)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("Chat socket closed by client", "session_id", sessionID)
			} else if ctx.Err() == nil {
				h.logger.Warn("Chat socket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if !h.writeFrame(ctx, ws, map[string]string{"error": "invalid frame"}) {
				return
			}
			continue
		}

		var out any
		switch {
		case frame.Type == "ping":
			out = map[string]string{"type": "pong"}
		case frame.empty():
			out = map[string]string{"error": "text is required"}
		case !h.limiter.Allow(key):
			out = map[string]string{"error": "rate limit exceeded"}
		default:
			reply, err := h.svc.SendMessage(ctx, sessionID, frame.Input())
			if err != nil {
				_, msg := statusFor(err)
				h.writeFrame(ctx, ws, map[string]string{"error": msg})
				return
			}
			out = replyPayload(sessionID, reply)
		}
		if !h.writeFrame(ctx, ws, out) {
			return
		}
	}
}

func (h *ChatHandler) writeFrame(ctx context.Context, ws *websocket.Conn, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode chat frame", "error", err)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("Chat socket write error", "error", err)
		return false
	}
	return true
}

func (h *ChatHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.origin == "" || h.origin == "*" {
		return true
	}
	if origin == h.origin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.origin)
	return false
}
