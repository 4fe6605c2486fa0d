package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalIndexRanksByOverlap(t *testing.T) {
	idx := NewLexicalIndex([]Document{
		{Source: "acne.md", Text: "L'acido azelaico riduce brufoli e rossori della pelle acneica.\n\nUsare la sera dopo la detersione."},
		{Source: "spf.md", Text: "La protezione solare va applicata ogni mattina anche in inverno."},
	})
	require.Equal(t, 3, idx.Len())

	got, err := idx.Search(context.Background(), "brufoli pelle acneica azelaico", 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "acne.md", got[0].Source)
	assert.Contains(t, got[0].Text, "azelaico")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestLexicalIndexEmptyCases(t *testing.T) {
	idx := NewLexicalIndex([]Document{{Source: "a", Text: "detergente delicato mattina sera"}})

	got, err := idx.Search(context.Background(), "", 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Search(context.Background(), "detergente", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Search(context.Background(), "ombretto glitter", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLexicalIndexDropsShortParagraphs(t *testing.T) {
	idx := NewLexicalIndex([]Document{{Source: "a", Text: "Titolo\n\nIl siero alla vitamina C illumina l'incarnato."}})
	assert.Equal(t, 1, idx.Len())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.md"), []byte("La crema con ceramidi ripara la barriera cutanea secca."), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "notes.txt"), []byte("Il retinale va introdotto gradualmente la sera."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.json"), []byte(`{"crema": "ceramidi barriera"}`), 0o600))

	idx, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	got, err := idx.Search(context.Background(), "retinale sera", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join("sub", "notes.txt"), got[0].Source)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

type failingProvider struct{}

func (failingProvider) Search(context.Context, string, int) ([]Snippet, error) {
	return nil, errors.New("unreachable")
}

func TestWithFallback(t *testing.T) {
	secondary := NewLexicalIndex([]Document{{Source: "kb", Text: "Il tonico alla niacinamide riequilibra i pori dilatati."}})
	p := WithFallback(failingProvider{}, secondary, nil)

	got, err := p.Search(context.Background(), "pori dilatati niacinamide", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kb", got[0].Source)

	got, err = WithFallback(secondary, None{}, nil).Search(context.Background(), "pori", 3)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
