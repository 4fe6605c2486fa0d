package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIncAndSnapshot(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	r.Inc(ctx, Fallbacks, map[string]string{"reason": "llm_error", "step": "awaiting_age"}, 1)
	r.Inc(ctx, Fallbacks, map[string]string{"step": "awaiting_age", "reason": "llm_error"}, 2)
	r.Inc(ctx, SessionsStarted, nil, 1)

	assert.Equal(t, int64(3), r.Value(Fallbacks, map[string]string{"reason": "llm_error", "step": "awaiting_age"}))
	assert.Equal(t, []string{
		`fallbacks_total{reason="llm_error",step="awaiting_age"} 3`,
		"sessions_started_total 1",
	}, r.SnapshotLines())
}

func TestRegistryConcurrentInc(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				r.Inc(context.Background(), Turns, map[string]string{"intent": "skin_analysis"}, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1000), r.Value(Turns, map[string]string{"intent": "skin_analysis"}))
}

func TestRegistryServeHTTP(t *testing.T) {
	r := NewRegistry()
	r.Inc(context.Background(), Repairs, map[string]string{"outcome": "fallback"}, 1)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "repairs_total{outcome=\"fallback\"} 1\n", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics?format=json", nil))
	var got map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got[`repairs_total{outcome="fallback"}`])
}
