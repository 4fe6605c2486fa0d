package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/llm"
	"github.com/ashureev/skinconsult/internal/metrics"
)

// Closing ends every validated reply.
const Closing = "Se hai altre domande, chiedi pure!"

// DefaultMaxRetries is the number of correction passes before falling back.
const DefaultMaxRetries = 1

// ErrExhausted is returned by Attempt when every try failed.
var ErrExhausted = errors.New("attempts exhausted")

var errEmptyDraft = errors.New("empty draft")

// IssuesError reports a candidate rejected by the validator.
type IssuesError struct {
	Issues []Issue
}

func (e *IssuesError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return "invalid reply: " + strings.Join(parts, "; ")
}

// Attempt calls fn with n = 0, 1, ... until it returns a nil error or
// maxRetries retries have failed. On exhaustion the last value is returned
// with an error wrapping ErrExhausted and the last failure.
func Attempt[T any](ctx context.Context, maxRetries int, fn func(ctx context.Context, n int) (T, error)) (T, error) {
	var last T
	var lastErr error
	for n := 0; n <= maxRetries; n++ {
		if err := ctx.Err(); err != nil {
			return last, fmt.Errorf("%w: %w", ErrExhausted, err)
		}
		v, err := fn(ctx, n)
		if err == nil {
			return v, nil
		}
		last, lastErr = v, err
	}
	return last, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxRetries+1, lastErr)
}

// Outcome is the result of a repair run.
type Outcome struct {
	Text string
	// Issues are the problems found in the original draft.
	Issues   []Issue
	Attempts int
	Repaired bool
	Fallback bool
}

// Repairer validates drafts and rewrites the ones that fail.
type Repairer struct {
	validator  *Validator
	completer  llm.Completer
	metrics    metrics.Recorder
	logger     *slog.Logger
	catalogRef string
	MaxRetries int
}

// NewRepairer returns a Repairer with one correction pass.
func NewRepairer(v *Validator, completer llm.Completer, rec metrics.Recorder, logger *slog.Logger) *Repairer {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Repairer{
		validator:  v,
		completer:  completer,
		metrics:    rec,
		logger:     logger,
		catalogRef: catalogReference(v.catalog.Products()),
		MaxRetries: DefaultMaxRetries,
	}
}

// Validator returns the validator used by r.
func (r *Repairer) Validator() *Validator {
	return r.validator
}

// Repair returns draft when it has no blocking issue. Otherwise it asks the
// completer for a corrected version, and when that is still invalid it
// returns fallback(), which is trusted as is.
func (r *Repairer) Repair(ctx context.Context, draft string, fallback func() string) Outcome {
	var draftIssues []Issue
	prev, prevIssues := draft, []Issue(nil)
	attempts := 0

	text, err := Attempt(ctx, r.MaxRetries, func(ctx context.Context, n int) (string, error) {
		attempts = n + 1
		candidate := draft
		if n > 0 {
			fixed, err := r.correct(ctx, prev, prevIssues)
			if err != nil {
				return "", err
			}
			candidate = fixed
		}

		issues := r.validator.Validate(candidate)
		if n == 0 {
			draftIssues = issues
			for _, is := range issues {
				r.metrics.Inc(ctx, metrics.ValidationIssue, map[string]string{"kind": string(is.Kind)}, 1)
			}
		}
		if strings.TrimSpace(candidate) == "" {
			return "", errEmptyDraft
		}
		if Blocking(issues) {
			prev, prevIssues = candidate, issues
			return candidate, &IssuesError{Issues: issues}
		}
		return candidate, nil
	})

	if err == nil {
		if attempts == 1 {
			r.metrics.Inc(ctx, metrics.Repairs, map[string]string{"outcome": "clean"}, 1)
			return Outcome{Text: text, Issues: draftIssues, Attempts: attempts}
		}
		r.logger.Info("reply repaired", "issues", len(draftIssues), "attempts", attempts)
		r.metrics.Inc(ctx, metrics.Repairs, map[string]string{"outcome": "repaired"}, 1)
		return Outcome{Text: text, Issues: draftIssues, Attempts: attempts, Repaired: true}
	}

	r.logger.Warn("reply replaced by template", "issues", len(draftIssues), "attempts", attempts, "error", err)
	r.metrics.Inc(ctx, metrics.Repairs, map[string]string{"outcome": "fallback"}, 1)
	return Outcome{Text: fallback(), Issues: draftIssues, Attempts: attempts, Fallback: true}
}

const correctionDirective = "Sei un revisore dei testi di una consulente skincare. " +
	"Riscrivi il testo ricevuto correggendo i problemi elencati. " +
	"Usa solo i nomi esatti dei prodotti del catalogo fornito e accompagna ogni prodotto con il suo link esatto. " +
	"Non usare link esterni al sito. Rispondi solo con il testo corretto."

func (r *Repairer) correct(ctx context.Context, text string, issues []Issue) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errEmptyDraft
	}

	var b strings.Builder
	b.WriteString("Testo originale:\n")
	b.WriteString(text)
	b.WriteString("\n\nProblemi:\n")
	for _, is := range issues {
		b.WriteString("- ")
		b.WriteString(is.String())
		b.WriteByte('\n')
	}
	b.WriteString("\nCatalogo:\n")
	b.WriteString(r.catalogRef)

	out, err := r.completer.Complete(ctx, llm.Request{
		System:      correctionDirective,
		Messages:    []llm.Message{{Speaker: llm.SpeakerUser, Text: b.String()}},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("correction pass: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("correction pass returned empty text")
	}
	return out, nil
}

func catalogReference(products []domain.ProductRecord) string {
	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.Name, p.Category, p.URL)
	}
	return b.String()
}

// EnsureBundleLink appends a kit section when the bundle URL is missing.
func EnsureBundleLink(text string, bundle domain.Bundle) string {
	if bundle.URL == "" || strings.Contains(text, bundle.URL) {
		return text
	}
	return strings.TrimRight(text, "\n ") +
		fmt.Sprintf("\n\n**Il kit consigliato per te:** %s\n%s", bundle.Name, bundle.URL)
}

// EnsureClosing appends Closing unless text already ends with it.
func EnsureClosing(text string) string {
	trimmed := strings.TrimRight(text, "\n ")
	if strings.HasSuffix(trimmed, Closing) {
		return trimmed
	}
	if trimmed == "" {
		return Closing
	}
	return trimmed + "\n\n" + Closing
}
