// Package consult ties the dialogue engine to session storage. It is the
// single entry point used by the HTTP and websocket handlers.
package consult

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/skinconsult/internal/dialogue"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/session"
	"github.com/ashureev/skinconsult/internal/store"
	"github.com/ashureev/skinconsult/internal/transcript"
)

// SnapshotSink receives the structured summary of every ended session.
type SnapshotSink interface {
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// Deps are the service collaborators. Engine, Sessions and Repo are required.
type Deps struct {
	Engine     *dialogue.Engine
	Sessions   *session.Registry
	Repo       store.Repository
	Transcript transcript.Logger
	Snapshots  SnapshotSink
	Logger     *slog.Logger
	// Channel tags transcript events, e.g. "chat_http".
	Channel string
}

// Service runs consultations.
type Service struct {
	engine     *dialogue.Engine
	sessions   *session.Registry
	repo       store.Repository
	transcript transcript.Logger
	snapshots  SnapshotSink
	logger     *slog.Logger
	channel    string
}

// New creates a Service.
func New(deps Deps) *Service {
	if deps.Transcript == nil {
		deps.Transcript = transcript.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Channel == "" {
		deps.Channel = "chat"
	}
	return &Service{
		engine:     deps.Engine,
		sessions:   deps.Sessions,
		repo:       deps.Repo,
		transcript: deps.Transcript,
		snapshots:  deps.Snapshots,
		logger:     deps.Logger,
		channel:    deps.Channel,
	}
}

// Started is the result of StartSession.
type Started struct {
	SessionID string
	Reply     dialogue.Reply
}

// StartSession opens a consultation and returns the greeting.
func (s *Service) StartSession(ctx context.Context, userName string) (Started, error) {
	sess, release := s.sessions.Create(strings.TrimSpace(userName))
	defer release()

	reply := s.engine.Greeting(sess)
	if err := s.repo.CreateSession(ctx, domain.RecordFromSession(sess)); err != nil {
		s.sessions.End(sess.ID)
		return Started{}, fmt.Errorf("persist new session: %w", err)
	}
	s.persistTurns(ctx, sess, 0, reply)

	s.logger.Info("Session started", "session_id", sess.ID)
	return Started{SessionID: sess.ID, Reply: reply}, nil
}

// SendMessage runs one turn. Only session lookup can fail; the reply itself
// always exists.
func (s *Service) SendMessage(ctx context.Context, sessionID string, in dialogue.Input) (dialogue.Reply, error) {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return dialogue.Reply{}, err
	}
	defer release()

	before := len(sess.History)
	reply := s.engine.HandleTurn(ctx, sess, in)
	s.persistTurns(ctx, sess, before, reply)
	return reply, nil
}

// persistTurns writes new history entries and the session state. The reply
// was already produced, so store failures are logged rather than returned.
func (s *Service) persistTurns(ctx context.Context, sess *domain.Session, from int, reply dialogue.Reply) {
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("session_id", sess.ID)

	for _, turn := range sess.History[from:] {
		msg := &domain.StoredMessage{
			SessionID: sess.ID,
			Content:   turn.Text,
			CreatedAt: turn.At,
		}
		ev := transcript.Event{
			SessionID:  sess.ID,
			Channel:    s.channel,
			ContentRaw: turn.Text,
		}

		if turn.Speaker == domain.SpeakerUser {
			msg.Role = domain.RoleUser
			if turn.Image != nil {
				msg.Metadata = map[string]any{"image_mime_type": turn.Image.MimeType}
			}
			ev.Direction = transcript.DirectionInbound
			ev.EventType = "user_message"
		} else {
			msg.Role = domain.RoleAssistant
			msg.Metadata = replyMetadata(reply)
			ev.Direction = transcript.DirectionOutbound
			ev.EventType = "bot_reply"
			ev.Meta = msg.Metadata
		}

		if err := s.repo.AppendMessage(ctx, msg); err != nil {
			logger.Error("Failed to persist message", "error", err, "role", msg.Role)
		}
		s.transcript.Log(ev)
	}

	if err := s.repo.SaveSessionState(ctx, domain.RecordFromSession(sess)); err != nil {
		logger.Error("Failed to persist session state", "error", err, "step", sess.CurrentStep)
	}
}

func replyMetadata(reply dialogue.Reply) map[string]any {
	meta := map[string]any{"step": string(reply.Step)}
	if reply.Intent != domain.IntentNone {
		meta["intent"] = string(reply.Intent)
	}
	if reply.HasChoices() {
		meta["choices"] = reply.Choices
	}
	if reply.Fallback {
		meta["fallback"] = true
	}
	return meta
}

// History returns the persisted message log of a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]domain.StoredMessage, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	msgs, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// EndSession closes a consultation and publishes its snapshot. A turn in
// flight for the same session completes first.
func (s *Service) EndSession(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer release()

	now := time.Now()
	if err := s.repo.EndSession(ctx, sessionID, now); err != nil {
		return domain.Snapshot{}, fmt.Errorf("end session: %w", err)
	}
	s.sessions.End(sessionID)

	msgs, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to load transcript for snapshot", "error", err, "session_id", sessionID)
	}

	snap := domain.Snapshot{
		SessionID:  sess.ID,
		UserName:   sess.UserName,
		Answers:    sess.Answers,
		Transcript: msgs,
		StartedAt:  sess.CreatedAt,
		EndedAt:    now,
	}
	if s.snapshots != nil {
		if err := s.snapshots.Publish(ctx, snap); err != nil {
			s.logger.Error("Failed to publish snapshot", "error", err, "session_id", sessionID)
		}
	}

	s.logger.Info("Session ended",
		"session_id", sessionID,
		"step", sess.CurrentStep,
		"messages", len(msgs),
	)
	return snap, nil
}
