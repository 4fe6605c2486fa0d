// Package retrieval supplies document snippets that ground generated answers.
package retrieval

import (
	"context"
	"log/slog"
)

// Snippet is a retrieved passage.
type Snippet struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Provider returns up to k snippets relevant to query. An empty result is valid.
type Provider interface {
	Search(ctx context.Context, query string, k int) ([]Snippet, error)
}

// None is a Provider with no documents.
type None struct{}

// Search returns no snippets.
func (None) Search(context.Context, string, int) ([]Snippet, error) {
	return nil, nil
}

// fallback queries primary and falls back to secondary on error.
type fallback struct {
	primary   Provider
	secondary Provider
	logger    *slog.Logger
}

// WithFallback returns a Provider that uses secondary when primary fails.
func WithFallback(primary, secondary Provider, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *fallback) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	out, err := f.primary.Search(ctx, query, k)
	if err == nil {
		return out, nil
	}
	f.logger.Warn("primary retrieval failed, using fallback", "error", err)
	return f.secondary.Search(ctx, query, k)
}
