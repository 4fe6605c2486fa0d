// Package session keeps live consultation sessions in memory, serializes the
// turns of each one and rebuilds evicted sessions from the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/metrics"
	"github.com/ashureev/skinconsult/internal/store"
)

// ErrNotFound is returned for unknown or ended sessions.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an idle session stays in memory.
const DefaultTTL = 60 * time.Minute

// Loader reads persisted sessions back. store.Repository satisfies it.
type Loader interface {
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	ListMessages(ctx context.Context, sessionID string) ([]domain.StoredMessage, error)
}

type entry struct {
	mu       sync.Mutex
	session  *domain.Session
	lastUsed time.Time
	ended    atomic.Bool
	evicted  atomic.Bool
}

// Registry maps session ids to live sessions. Each session has its own lock,
// so turns of one conversation never interleave while different
// conversations proceed in parallel.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	loader  Loader
	ttl     time.Duration
	now     func() time.Time
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewRegistry creates a registry. loader may be nil, in which case evicted
// sessions are gone for good.
func NewRegistry(loader Loader, ttl time.Duration, rec metrics.Recorder, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		metrics: rec,
		logger:  logger,
	}
}

// Create registers a fresh session and returns it locked.
func (r *Registry) Create(userName string) (*domain.Session, func()) {
	now := r.now()
	e := &entry{
		session:  domain.NewSession(uuid.NewString(), userName, now),
		lastUsed: now,
	}
	e.mu.Lock()

	r.mu.Lock()
	r.entries[e.session.ID] = e
	r.mu.Unlock()

	r.metrics.Inc(context.Background(), metrics.SessionsStarted, nil, 1)
	return e.session, releaser(e)
}

// Acquire locks the session for one turn. The returned func must be called
// exactly once when the turn is done; extra calls are no-ops.
func (r *Registry) Acquire(ctx context.Context, id string) (*domain.Session, func(), error) {
	for {
		e, err := r.lookup(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		e.mu.Lock()
		if e.evicted.Load() {
			// Swept between lookup and lock; look it up again.
			e.mu.Unlock()
			continue
		}
		if e.ended.Load() {
			e.mu.Unlock()
			return nil, nil, ErrNotFound
		}
		e.lastUsed = r.now()
		return e.session, releaser(e), nil
	}
}

func releaser(e *entry) func() {
	var once sync.Once
	return func() { once.Do(e.mu.Unlock) }
}

func (r *Registry) lookup(ctx context.Context, id string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		return e, nil
	}

	s, err := r.rehydrate(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[id]; ok {
		return existing, nil
	}
	e = &entry{session: s, lastUsed: r.now()}
	r.entries[id] = e
	r.logger.Info("Session rehydrated", "session_id", id, "turns", len(s.History), "step", s.CurrentStep)
	return e, nil
}

func (r *Registry) rehydrate(ctx context.Context, id string) (*domain.Session, error) {
	if r.loader == nil || id == "" {
		return nil, ErrNotFound
	}

	rec, err := r.loader.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if rec.Ended() {
		return nil, ErrNotFound
	}

	msgs, err := r.loader.ListMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", id, err)
	}
	return Restore(rec, msgs), nil
}

// Restore rebuilds live state from its persisted form. Images are not
// persisted, so restored turns are text only.
func Restore(rec *domain.SessionRecord, msgs []domain.StoredMessage) *domain.Session {
	s := &domain.Session{
		ID:                   rec.SessionID,
		UserName:             rec.UserName,
		CurrentStep:          rec.Step,
		StructuredFlowActive: rec.StructuredFlowActive,
		HasIntroduced:        rec.HasIntroduced,
		LastIntent:           rec.LastIntent,
		Answers:              rec.Answers,
		FinalDelivered:       rec.FinalDelivered,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}
	if s.CurrentStep == "" {
		s.CurrentStep = domain.StepGreeting
	}
	for _, m := range msgs {
		speaker := domain.SpeakerUser
		if m.Role == domain.RoleAssistant {
			speaker = domain.SpeakerModel
		}
		s.History = append(s.History, domain.Turn{Speaker: speaker, Text: m.Content, At: m.CreatedAt})
	}
	return s
}

// End drops the session. Turns already holding it finish normally; anyone
// still waiting for it gets ErrNotFound.
func (r *Registry) End(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		e.ended.Store(true)
	}
}

// Sweep evicts sessions idle for longer than the TTL. Sessions in the middle
// of a turn are skipped. Returns the number evicted.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastUsed.Before(cutoff) {
			e.evicted.Store(true)
			delete(r.entries, id)
			evicted++
		}
		e.mu.Unlock()
	}

	if evicted > 0 {
		r.metrics.Inc(ctx, metrics.SessionsEvicted, nil, int64(evicted))
	}
	return evicted
}

// Len returns the number of sessions in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
