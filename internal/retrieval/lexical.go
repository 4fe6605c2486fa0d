package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// minChunkTokens drops paragraphs too short to be useful context.
const minChunkTokens = 3

var stopwords = map[string]bool{
	"il": true, "lo": true, "la": true, "i": true, "gli": true, "le": true,
	"un": true, "una": true, "uno": true, "di": true, "da": true, "in": true,
	"con": true, "su": true, "per": true, "tra": true, "fra": true, "e": true,
	"o": true, "a": true, "che": true, "non": true, "del": true, "della": true,
	"dei": true, "delle": true, "al": true, "alla": true, "nel": true, "nella": true,
	"mi": true, "ti": true, "si": true, "ci": true, "è": true, "ho": true,
	"the": true, "and": true, "of": true, "to": true, "is": true, "for": true,
}

type chunk struct {
	text   string
	source string
	tokens map[string]struct{}
}

// LexicalIndex ranks paragraphs by Jaccard similarity of their token sets.
type LexicalIndex struct {
	chunks []chunk
}

// Document is a named text to ingest.
type Document struct {
	Source string
	Text   string
}

// NewLexicalIndex chunks documents by paragraph.
func NewLexicalIndex(docs []Document) *LexicalIndex {
	idx := &LexicalIndex{}
	for _, d := range docs {
		for _, para := range splitParagraphs(d.Text) {
			tokens := tokenSet(para)
			if len(tokens) < minChunkTokens {
				continue
			}
			idx.chunks = append(idx.chunks, chunk{text: para, source: d.Source, tokens: tokens})
		}
	}
	return idx
}

// LoadDir ingests every .md and .txt file under dir.
func LoadDir(dir string) (*LexicalIndex, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		docs = append(docs, Document{Source: rel, Text: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk knowledge dir: %w", err)
	}

	idx := NewLexicalIndex(docs)
	slog.Info("Knowledge base ingested", "dir", dir, "documents", len(docs), "chunks", idx.Len())
	return idx, nil
}

// Len returns the number of indexed chunks.
func (l *LexicalIndex) Len() int {
	return len(l.chunks)
}

// Search returns the k chunks most similar to query, best first.
func (l *LexicalIndex) Search(_ context.Context, query string, k int) ([]Snippet, error) {
	if k <= 0 || len(l.chunks) == 0 {
		return nil, nil
	}
	q := tokenSet(query)
	if len(q) == 0 {
		return nil, nil
	}

	var out []Snippet
	for _, c := range l.chunks {
		score := jaccard(q, c.tokens)
		if score == 0 {
			continue
		}
		out = append(out, Snippet{Text: c.text, Source: c.source, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
