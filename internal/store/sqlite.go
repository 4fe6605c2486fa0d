package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.ConflictRetry
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultConflictRetry}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		step TEXT NOT NULL,
		structured_flow_active INTEGER NOT NULL DEFAULT 0,
		has_introduced INTEGER NOT NULL DEFAULT 0,
		final_delivered INTEGER NOT NULL DEFAULT 0,
		last_intent TEXT NOT NULL DEFAULT '',
		answers_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		ended_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at) WHERE ended_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(session_id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, rec *domain.SessionRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	query := `
	INSERT INTO sessions (
		session_id, user_name, step, structured_flow_active, has_introduced,
		final_delivered, last_intent, answers_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, s.retry, "create_session", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			rec.SessionID, rec.UserName, string(rec.Step),
			rec.StructuredFlowActive, rec.HasIntroduced, rec.FinalDelivered,
			string(rec.LastIntent), string(answers),
			rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

const sessionColumns = `session_id, user_name, step, structured_flow_active, has_introduced,
	final_delivered, last_intent, answers_json, created_at, updated_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var step, intent, answers string
	var createdAt, updatedAt int64
	var endedAt sql.NullInt64

	if err := row.Scan(
		&rec.SessionID, &rec.UserName, &step,
		&rec.StructuredFlowActive, &rec.HasIntroduced, &rec.FinalDelivered,
		&intent, &answers, &createdAt, &updatedAt, &endedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(answers), &rec.Answers); err != nil {
		return nil, fmt.Errorf("decode answers for %s: %w", rec.SessionID, err)
	}
	rec.Step = domain.Step(step)
	rec.LastIntent = domain.Intent(intent)
	rec.CreatedAt = time.UnixMilli(createdAt)
	rec.UpdatedAt = time.UnixMilli(updatedAt)
	if endedAt.Valid {
		ts := time.UnixMilli(endedAt.Int64)
		rec.EndedAt = &ts
	}
	return &rec, nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = ?`

	rec, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return rec, nil
}

// SaveSessionState overwrites the mutable dialogue state of a session.
func (s *SQLiteStore) SaveSessionState(ctx context.Context, rec *domain.SessionRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	query := `
	UPDATE sessions SET
		step = ?, structured_flow_active = ?, has_introduced = ?,
		final_delivered = ?, last_intent = ?, answers_json = ?, updated_at = ?
	WHERE session_id = ?`

	return shared.RetryOnConflict(ctx, s.retry, "save_session_state", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query,
			string(rec.Step), rec.StructuredFlowActive, rec.HasIntroduced,
			rec.FinalDelivered, string(rec.LastIntent), string(answers),
			rec.UpdatedAt.UnixMilli(), rec.SessionID,
		)
		if err != nil {
			return fmt.Errorf("update session state: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// EndSession marks a session as ended.
func (s *SQLiteStore) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET ended_at = COALESCE(ended_at, ?), updated_at = ? WHERE session_id = ?`

	return shared.RetryOnConflict(ctx, s.retry, "end_session", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query, at.UnixMilli(), at.UnixMilli(), sessionID)
		if err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("EndSession affected 0 rows", "session_id", sessionID)
			return ErrNotFound
		}
		return nil
	})
}

// AppendMessage adds an entry to the message log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.StoredMessage) error {
	var metadata any
	if len(msg.Metadata) > 0 {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("encode message metadata: %w", err)
		}
		metadata = string(raw)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `INSERT INTO messages (session_id, role, content, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, s.retry, "append_message", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query,
			msg.SessionID, msg.Role, msg.Content, metadata, msg.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get message id: %w", err)
		}
		msg.ID = id
		return nil
	})
}

// ListMessages returns a session's log in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]domain.StoredMessage, error) {
	query := `
		SELECT id, session_id, role, content, metadata_json, created_at
		FROM messages WHERE session_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var out []domain.StoredMessage
	for rows.Next() {
		var msg domain.StoredMessage
		var metadata sql.NullString
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		msg.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// ListEndedSessions returns sessions ended at or after since, oldest first.
func (s *SQLiteStore) ListEndedSessions(ctx context.Context, since time.Time) ([]*domain.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE ended_at IS NOT NULL AND ended_at >= ? ORDER BY ended_at, session_id`

	rows, err := s.db.QueryContext(ctx, query, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query ended sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close ended sessions rows", "error", closeErr)
		}
	}()

	var out []*domain.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ended session row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ended sessions: %w", err)
	}
	return out, nil
}
