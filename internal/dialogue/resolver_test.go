package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDomain = "https://www.dermalab.it"

func TestResolvePriorityTable(t *testing.T) {
	r := NewResolver(testDomain + "/")

	tests := []struct {
		skin, issue string
		want        string
	}{
		{"Grassa", "Rosacea/Couperose", "Routine Pelle con Rosacea"},
		{"Mista", "Macchie e acne", "Routine Anti-Macchie"},
		{"Mista", "Acne/Brufoli", "Routine Pelle Acne Tardiva"},
		{"Secca", "acne tardiva", "Routine Pelle Acne Tardiva"},
		{"Normale", "Pelle sensibile/Reattiva", "Routine Pelle Sensibile"},
		{"Mista", "Rughe/Invecchiamento", "Routine Prime Rughe"},
		{"Secca", "prime linee d'espressione", "Routine Antirughe"},
		{"Mista", "Pori dilatati", "Routine Pelle Mista"},
		{"Grassa", "Rughe/Invecchiamento", "Routine Pelle Grassa"},
		{"Secca", "", "Routine Pelle Secca"},
	}
	for _, tt := range tests {
		t.Run(tt.skin+"/"+tt.issue, func(t *testing.T) {
			got := r.Resolve(tt.skin, tt.issue)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestResolveAcneBundleURL(t *testing.T) {
	got := NewResolver(testDomain).Resolve("Mista", "Acne/Brufoli")
	require.NotNil(t, got)
	assert.Equal(t, testDomain+"/prodotto/routine-pelle-acne-tardiva/", got.URL)
}

func TestResolveNoMatch(t *testing.T) {
	r := NewResolver(testDomain)
	assert.Nil(t, r.Resolve("Normale", "Pori dilatati"))
	assert.Nil(t, r.Resolve("", ""))
	assert.Equal(t, testDomain+"/skincare-routine/", r.FallbackBundle().URL)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewResolver(testDomain)
	first := r.Resolve("Mista", "Rughe/Invecchiamento")
	for range 10 {
		r.Resolve("Secca", "Rosacea")
		assert.Equal(t, first, r.Resolve("Mista", "Rughe/Invecchiamento"))
	}
}

func TestBundlesCoverEveryRule(t *testing.T) {
	bundles := NewResolver(testDomain).Bundles()
	assert.Len(t, bundles, len(bundleRules))
	for _, b := range bundles {
		assert.Contains(t, b.URL, testDomain+"/prodotto/routine-")
	}
}
