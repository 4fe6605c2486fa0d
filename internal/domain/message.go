package domain

import (
	"time"
)

// Message roles persisted in the message log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StoredMessage is a persisted chat message entry.
type StoredMessage struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SessionRecord is the persisted form of a session's state.
type SessionRecord struct {
	SessionID            string
	UserName             string
	Step                 Step
	StructuredFlowActive bool
	HasIntroduced        bool
	FinalDelivered       bool
	LastIntent           Intent
	Answers              Answers
	CreatedAt            time.Time
	UpdatedAt            time.Time
	EndedAt              *time.Time
}

// Ended returns true if the session was closed explicitly.
func (r *SessionRecord) Ended() bool {
	return r.EndedAt != nil
}

// RecordFromSession converts live state into its persisted form.
func RecordFromSession(s *Session) *SessionRecord {
	return &SessionRecord{
		SessionID:            s.ID,
		UserName:             s.UserName,
		Step:                 s.CurrentStep,
		StructuredFlowActive: s.StructuredFlowActive,
		HasIntroduced:        s.HasIntroduced,
		FinalDelivered:       s.FinalDelivered,
		LastIntent:           s.LastIntent,
		Answers:              s.Answers,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

// Snapshot is the structured extraction handed to CRM exporters at session end.
type Snapshot struct {
	SessionID  string          `json:"session_id"`
	UserName   string          `json:"user_name"`
	Answers    Answers         `json:"answers"`
	Transcript []StoredMessage `json:"transcript"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    time.Time       `json:"ended_at"`
}
