// Package llm is the text completion gateway used by the dialogue engine.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when no completion backend is configured.
	ErrUnavailable = errors.New("completion service unavailable")
	// ErrTransient marks errors worth retrying.
	ErrTransient = errors.New("transient completion error")
)

// Speaker tags a message in a completion request.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// InlineImage is an image sent alongside a user message.
type InlineImage struct {
	MimeType string
	Base64   string
}

// Message is one turn of a completion request.
type Message struct {
	Speaker Speaker
	Text    string
	Image   *InlineImage
}

// Request is a structured conversation plus a system directive.
type Request struct {
	System          string
	Messages        []Message
	Temperature     float64
	MaxOutputTokens int
}

// Completer generates text for a request. An empty string with a nil error
// means the backend answered without content; callers handle that apart
// from failures.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Unavailable is a Completer that always fails with ErrUnavailable.
type Unavailable struct{}

// Complete returns ErrUnavailable.
func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}
