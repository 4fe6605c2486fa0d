package validation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/skinconsult/internal/llm/llmtest"
	"github.com/ashureev/skinconsult/internal/metrics"
	"github.com/ashureev/skinconsult/internal/validation"
)

func TestAttempt(t *testing.T) {
	calls := 0
	v, err := validation.Attempt(context.Background(), 2, func(_ context.Context, n int) (int, error) {
		calls++
		if n < 2 {
			return n, errors.New("not yet")
		}
		return n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 3, calls)

	v, err = validation.Attempt(context.Background(), 1, func(_ context.Context, n int) (int, error) {
		return n + 10, errors.New("never")
	})
	require.ErrorIs(t, err, validation.ErrExhausted)
	assert.Equal(t, 11, v)
}

func TestAttemptStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := validation.Attempt(ctx, 3, func(context.Context, int) (string, error) {
		calls++
		return "", nil
	})
	require.ErrorIs(t, err, validation.ErrExhausted)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

const fallbackText = "**Routine del mattino**\n- Azelaic Cleansing Gel " + d + "/prodotto/azelaic-cleansing-gel/"

func fallback() string { return fallbackText }

func TestRepairCleanDraftSkipsCompleter(t *testing.T) {
	c := llmtest.Texts()
	r := validation.NewRepairer(newValidator(), c, nil, nil)

	draft := "Usa Invisible Shield SPF50 " + d + "/prodotto/invisible-shield-spf50/"
	out := r.Repair(context.Background(), draft, fallback)
	assert.Equal(t, draft, out.Text)
	assert.False(t, out.Repaired)
	assert.False(t, out.Fallback)
	assert.Zero(t, c.Calls())
}

func TestRepairAcceptsCorrection(t *testing.T) {
	fixed := "Usa Ceramide Rich Cream " + d + "/prodotto/ceramide-rich-cream/"
	c := llmtest.Texts(fixed)
	rec := metrics.NewRegistry()
	r := validation.NewRepairer(newValidator(), c, rec, nil)

	out := r.Repair(context.Background(), "Usa la Crema Defense ogni sera.", fallback)
	assert.Equal(t, fixed, out.Text)
	assert.True(t, out.Repaired)
	assert.Equal(t, 2, out.Attempts)
	require.Equal(t, 1, c.Calls())

	prompt := c.Requests()[0].Messages[0].Text
	assert.Contains(t, prompt, "Crema Defense")
	assert.Contains(t, prompt, "forbidden-product")
	assert.Contains(t, prompt, d+"/prodotto/ceramide-rich-cream/")

	assert.Equal(t, int64(1), rec.Value(metrics.ValidationIssue, map[string]string{"kind": "forbidden-product"}))
	assert.Equal(t, int64(1), rec.Value(metrics.Repairs, map[string]string{"outcome": "repaired"}))
}

func TestRepairFallsBackWhenCorrectionStillForbidden(t *testing.T) {
	c := llmtest.Texts("Meglio la crema-defense, davvero.", "mai chiamato")
	r := validation.NewRepairer(newValidator(), c, nil, nil)

	out := r.Repair(context.Background(), "Prova la Crema Defense.", fallback)
	assert.True(t, out.Fallback)
	assert.Equal(t, fallbackText, out.Text)
	assert.NotContains(t, strings.ToLower(out.Text), "defense")
	assert.Equal(t, 1, c.Calls())
	require.NotEmpty(t, out.Issues)
	assert.Equal(t, validation.KindForbiddenProduct, out.Issues[0].Kind)
}

func TestRepairFallsBackWhenCompleterFails(t *testing.T) {
	c := llmtest.Failing(errors.New("boom"))
	r := validation.NewRepairer(newValidator(), c, nil, nil)

	out := r.Repair(context.Background(), "Visita https://example.com/crema", fallback)
	assert.True(t, out.Fallback)
	assert.Equal(t, fallbackText, out.Text)
}

func TestRepairEmptyDraftUsesFallbackWithoutCall(t *testing.T) {
	c := llmtest.Texts("non usato")
	r := validation.NewRepairer(newValidator(), c, nil, nil)

	out := r.Repair(context.Background(), "   ", fallback)
	assert.True(t, out.Fallback)
	assert.Zero(t, c.Calls())
}
