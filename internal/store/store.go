// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/skinconsult/internal/domain"
)

// ErrNotFound is returned when a session row does not exist.
var ErrNotFound = errors.New("store: not found")

// Repository defines the interface for persisting consultation sessions and
// their message log.
type Repository interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, rec *domain.SessionRecord) error

	// GetSession retrieves a session by id. Returns ErrNotFound if missing.
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// SaveSessionState overwrites the mutable dialogue state of a session.
	SaveSessionState(ctx context.Context, rec *domain.SessionRecord) error

	// EndSession marks a session as ended. Ending twice keeps the first timestamp.
	EndSession(ctx context.Context, sessionID string, at time.Time) error

	// AppendMessage adds an entry to the message log and sets msg.ID.
	AppendMessage(ctx context.Context, msg *domain.StoredMessage) error

	// ListMessages returns a session's log in insertion order.
	ListMessages(ctx context.Context, sessionID string) ([]domain.StoredMessage, error)

	// ListEndedSessions returns sessions ended at or after since, oldest first.
	ListEndedSessions(ctx context.Context, since time.Time) ([]*domain.SessionRecord, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
