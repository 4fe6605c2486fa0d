// Package llmtest provides scripted completers for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/ashureev/skinconsult/internal/llm"
)

// ErrScriptExhausted is returned when a Scripted completer runs out of replies.
var ErrScriptExhausted = errors.New("scripted completer exhausted")

// Reply is one scripted outcome.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays replies in order and records every request.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
	// Fallback is used once the script is exhausted; nil means ErrScriptExhausted.
	Fallback *Reply
}

// NewScripted returns a completer that answers with the given replies.
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Texts builds a script of successful replies.
func Texts(texts ...string) *Scripted {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return NewScripted(replies...)
}

// Failing returns a completer that always fails with err.
func Failing(err error) *Scripted {
	return &Scripted{Fallback: &Reply{Err: err}}
}

// Complete pops the next reply.
func (s *Scripted) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		if s.Fallback != nil {
			return s.Fallback.Text, s.Fallback.Err
		}
		return "", ErrScriptExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Text, r.Err
}

// Requests returns a copy of the recorded requests.
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the number of Complete calls.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
