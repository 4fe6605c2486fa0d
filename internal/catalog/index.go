// Package catalog provides the read-only product catalog index.
package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ashureev/skinconsult/internal/domain"
)

// Product categories recognized by the index.
const (
	CategoryCleanser    = "cleanser"
	CategoryToner       = "toner"
	CategorySerum       = "serum"
	CategoryExfoliant   = "exfoliant"
	CategoryMoisturizer = "moisturizer"
	CategoryEyeCare     = "eye-care"
	CategorySunscreen   = "sunscreen"
	CategoryMask        = "mask"
	CategoryKit         = "kit"
)

// categorySynonyms maps user vocabulary to a category. Longer phrases are
// checked first so "latte detergente" wins over "latte".
var categorySynonyms = map[string]string{
	"detergente":        CategoryCleanser,
	"detergenti":        CategoryCleanser,
	"cleanser":          CategoryCleanser,
	"struccante":        CategoryCleanser,
	"latte detergente":  CategoryCleanser,
	"gel detergente":    CategoryCleanser,
	"tonico":            CategoryToner,
	"toner":             CategoryToner,
	"lozione":           CategoryToner,
	"siero":             CategorySerum,
	"sieri":             CategorySerum,
	"serum":             CategorySerum,
	"esfoliante":        CategoryExfoliant,
	"peeling":           CategoryExfoliant,
	"scrub":             CategoryExfoliant,
	"crema":             CategoryMoisturizer,
	"crema viso":        CategoryMoisturizer,
	"idratante":         CategoryMoisturizer,
	"moisturizer":       CategoryMoisturizer,
	"contorno occhi":    CategoryEyeCare,
	"occhiaie":          CategoryEyeCare,
	"eye":               CategoryEyeCare,
	"protezione solare": CategorySunscreen,
	"solare":            CategorySunscreen,
	"spf":               CategorySunscreen,
	"sunscreen":         CategorySunscreen,
	"maschera":          CategoryMask,
	"mask":              CategoryMask,
	"routine":           CategoryKit,
	"kit":               CategoryKit,
}

var sortedSynonyms = func() []string {
	keys := make([]string, 0, len(categorySynonyms))
	for k := range categorySynonyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// CategoryFor maps a term to a category, or "" if none matches.
func CategoryFor(term string) string {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return ""
	}
	if c, ok := categorySynonyms[t]; ok {
		return c
	}
	for _, syn := range sortedSynonyms {
		if containsWord(t, syn) {
			return categorySynonyms[syn]
		}
	}
	return ""
}

// Index answers lookups over a fixed list of products.
type Index struct {
	products []domain.ProductRecord
	byName   map[string]int
	matchers []*regexp.Regexp
}

// New builds an index. Records keep their order for stable tie-breaking.
func New(records []domain.ProductRecord) *Index {
	idx := &Index{
		products: make([]domain.ProductRecord, 0, len(records)),
		byName:   make(map[string]int, len(records)),
	}
	for _, r := range records {
		key := strings.ToLower(strings.TrimSpace(r.Name))
		if key == "" {
			continue
		}
		if _, dup := idx.byName[key]; dup {
			continue
		}
		idx.byName[key] = len(idx.products)
		idx.products = append(idx.products, r)
		idx.matchers = append(idx.matchers, nameMatcher(r.Name))
	}
	return idx
}

// Empty returns an index with no products.
func Empty() *Index {
	return New(nil)
}

// Len returns the number of products.
func (i *Index) Len() int {
	return len(i.products)
}

// Products returns a copy of all records in catalog order.
func (i *Index) Products() []domain.ProductRecord {
	out := make([]domain.ProductRecord, len(i.products))
	copy(out, i.products)
	return out
}

// FindExact returns the product whose canonical name equals name, ignoring case.
func (i *Index) FindExact(name string) *domain.ProductRecord {
	pos, ok := i.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	p := i.products[pos]
	return &p
}

// FindByCategoryOrKeyword maps term to a category through the synonym table,
// falling back to a substring search over names and descriptions.
func (i *Index) FindByCategoryOrKeyword(term string) []domain.ProductRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	if cat := CategoryFor(term); cat != "" {
		if found := i.ByCategory(cat); len(found) > 0 {
			return found
		}
	}

	var out []domain.ProductRecord
	for _, p := range i.products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Description), term) {
			out = append(out, p)
		}
	}
	return out
}

// ByCategory returns every product of a category in catalog order.
func (i *Index) ByCategory(category string) []domain.ProductRecord {
	var out []domain.ProductRecord
	for _, p := range i.products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

// AllNames returns every canonical product name.
func (i *Index) AllNames() []string {
	names := make([]string, len(i.products))
	for n, p := range i.products {
		names[n] = p.Name
	}
	return names
}

// Mentioned returns the products whose names appear in text, in catalog order.
func (i *Index) Mentioned(text string) []domain.ProductRecord {
	var out []domain.ProductRecord
	for n, m := range i.matchers {
		if m.MatchString(text) {
			out = append(out, i.products[n])
		}
	}
	return out
}

// MentionIndexes returns the byte offsets where the product name occurs in text.
func (i *Index) MentionIndexes(name, text string) [][]int {
	pos, ok := i.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return i.matchers[pos].FindAllStringIndex(text, -1)
}

// nameMatcher matches a product name case-insensitively on word boundaries,
// tolerating runs of whitespace between words.
func nameMatcher(name string) *regexp.Regexp {
	words := strings.Fields(name)
	for n, w := range words {
		words[n] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(^|[^\pL\pN])` + strings.Join(words, `\s+`) + `($|[^\pL\pN])`)
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isWordByte(text[idx-1])
		end := idx + len(word)
		after := end == len(text) || !isWordByte(text[end])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += next + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}
