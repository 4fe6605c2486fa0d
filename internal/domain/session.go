// Package domain contains core domain types for the skincare consultation service.
package domain

import (
	"time"
)

// Step is a dialogue state of the intake questionnaire.
type Step string

const (
	StepGreeting               Step = "greeting"
	StepAwaitingSkinType       Step = "awaiting_skin_type"
	StepAwaitingAge            Step = "awaiting_age"
	StepAwaitingProblem        Step = "awaiting_problem"
	StepAwaitingAdviceType     Step = "awaiting_advice_type"
	StepAwaitingAdditionalInfo Step = "awaiting_additional_info"
	StepCompleted              Step = "completed"
)

// IsQuestion reports whether the step is waiting on a questionnaire answer.
func (s Step) IsQuestion() bool {
	switch s {
	case StepAwaitingSkinType, StepAwaitingAge, StepAwaitingProblem,
		StepAwaitingAdviceType, StepAwaitingAdditionalInfo:
		return true
	}
	return false
}

// Intent is the classification of an incoming user message.
type Intent string

const (
	IntentNone         Intent = ""
	IntentProductInfo  Intent = "product_info"
	IntentSkinAnalysis Intent = "skin_analysis"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// InlineImage is an image attached to a turn.
type InlineImage struct {
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64"`
}

// Turn is one entry of the conversation history.
type Turn struct {
	Speaker Speaker      `json:"speaker"`
	Text    string       `json:"text"`
	Image   *InlineImage `json:"image,omitempty"`
	At      time.Time    `json:"at"`
}

// Answers holds what the questionnaire has collected so far.
type Answers struct {
	SkinType       string   `json:"skin_type,omitempty"`
	Age            string   `json:"age,omitempty"`
	MainIssue      string   `json:"main_issue,omitempty"`
	AdviceType     string   `json:"advice_type,omitempty"`
	AdditionalInfo string   `json:"additional_info,omitempty"`
	SkinProblems   []string `json:"skin_problems,omitempty"`
}

// AddProblem records a skin problem once.
func (a *Answers) AddProblem(p string) {
	for _, existing := range a.SkinProblems {
		if existing == p {
			return
		}
	}
	a.SkinProblems = append(a.SkinProblems, p)
}

// Session is the mutable state of a single conversation.
type Session struct {
	ID                   string
	UserName             string
	History              []Turn
	CurrentStep          Step
	StructuredFlowActive bool
	HasIntroduced        bool
	LastIntent           Intent
	Answers              Answers
	// FinalDelivered is set once the closing recommendation has been sent.
	FinalDelivered bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewSession returns a session in the greeting step.
func NewSession(id, userName string, now time.Time) *Session {
	return &Session{
		ID:          id,
		UserName:    userName,
		CurrentStep: StepGreeting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// RecordTurn appends a turn to the history.
func (s *Session) RecordTurn(speaker Speaker, text string, img *InlineImage) {
	now := time.Now()
	s.History = append(s.History, Turn{
		Speaker: speaker,
		Text:    text,
		Image:   img,
		At:      now,
	})
	s.UpdatedAt = now
}

// Complete freezes the questionnaire.
func (s *Session) Complete() {
	s.CurrentStep = StepCompleted
	s.StructuredFlowActive = false
}

// RecentTurns returns the last n turns from history.
func (s *Session) RecentTurns(n int) []Turn {
	if n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
