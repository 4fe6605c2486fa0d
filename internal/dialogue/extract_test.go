package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/skinconsult/internal/catalog/catalogtest"
	"github.com/ashureev/skinconsult/internal/domain"
)

func TestExtract(t *testing.T) {
	got := Extract("Ho la pelle grassa e tanti brufoli, ho 29 anni")
	assert.Equal(t, "Grassa", got.SkinType)
	assert.Equal(t, "26-35", got.Age)
	assert.Equal(t, "Acne/Brufoli", got.MainIssue)
	assert.Equal(t, []string{"Acne/Brufoli"}, got.Problems)

	got = Extract("pelli molto secche, con occhiaie")
	assert.Equal(t, "Secca", got.SkinType)
	assert.Empty(t, got.MainIssue)
	assert.Equal(t, []string{"Occhiaie/Contorno occhi"}, got.Problems)

	assert.True(t, Extract("ciao, come stai?").Empty())
	assert.Empty(t, Extract("grassa").SkinType)
}

func TestParseAnalysis(t *testing.T) {
	a, err := ParseAnalysis(`{"scores": {"acne": 72, "redness": 64, "spots": 20}}`)
	require.NoError(t, err)
	assert.Equal(t, "Acne/Brufoli", a.MainIssue())
	assert.Equal(t, []string{"Acne/Brufoli", "Rosacea/Couperose"}, a.Problems())

	a, err = ParseAnalysis(`{"Wrinkles": 61, "pores": 60}`)
	require.NoError(t, err)
	assert.Equal(t, "Rughe/Invecchiamento", a.MainIssue())

	a, err = ParseAnalysis(`{"acne": 40, "pores": 60.9}`)
	require.NoError(t, err)
	assert.Empty(t, a.MainIssue())
	assert.Empty(t, a.Problems())
}

func TestParseAnalysisTieKeepsTableOrder(t *testing.T) {
	a, err := ParseAnalysis(`{"pores": 80, "spots": 80}`)
	require.NoError(t, err)
	assert.Equal(t, "Macchie/Discromie", a.MainIssue())
}

func TestParseAnalysisMalformed(t *testing.T) {
	for _, raw := range []string{`{not json`, `[]`, `{"acne": "high"}`, `{}`} {
		_, err := ParseAnalysis(raw)
		require.ErrorIs(t, err, ErrMalformedAnalysis, raw)
	}
}

func TestClassifyIntent(t *testing.T) {
	idx := catalogtest.Index()
	tests := []struct {
		text        string
		hasAnalysis bool
		want        domain.Intent
	}{
		{"Quanto costa M-Eye Secret?", false, domain.IntentProductInfo},
		{"mi parli della Ceramide Rich Cream", false, domain.IntentProductInfo},
		{"cerco un prodotto per le macchie", false, domain.IntentProductInfo},
		{"I'm looking for a product for dry skin", false, domain.IntentProductInfo},
		{"ho la pelle secca e quanto costa il siero?", false, domain.IntentProductInfo},
		{"Ho la pelle grassa e tanti brufoli", false, domain.IntentSkinAnalysis},
		{"soffro di rosacea da anni", false, domain.IntentSkinAnalysis},
		{"", true, domain.IntentSkinAnalysis},
		{"ciao!", false, domain.IntentNone},
		{"Routine completa", false, domain.IntentNone},
		{"Mista", false, domain.IntentNone},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.text, tt.hasAnalysis, idx))
		})
	}
}
