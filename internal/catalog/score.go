package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashureev/skinconsult/internal/domain"
)

// Scored is a product ranked against a set of skin problems.
type Scored struct {
	Product domain.ProductRecord `json:"product"`
	Score   int                  `json:"score"`
	Reason  string               `json:"reason"`
}

type signal struct {
	keyword string
	weight  int
	label   string
}

// problemKeys maps user wording to a canonical problem key.
var problemKeys = []struct {
	key      string
	synonyms []string
}{
	{"acne", []string{"acne", "brufoli", "brufolo", "imperfezioni", "punti neri", "tardiva"}},
	{"spots", []string{"macchie", "discromie", "pigmentazione", "iperpigmentazione", "melasma"}},
	{"aging", []string{"rughe", "invecchiamento", "anti-age", "antiage", "antietà", "linee sottili", "rilassamento", "elasticità"}},
	{"rosacea", []string{"rosacea", "couperose", "rossori", "arrossamenti"}},
	{"sensitive", []string{"sensibile", "reattiva", "atopica", "irritata", "irritazioni"}},
	{"pores", []string{"pori", "pori dilatati", "lucidità", "sebo"}},
	{"dryness", []string{"secchezza", "disidratata", "disidratazione", "screpolata", "desquamazione"}},
	{"eyes", []string{"occhiaie", "borse", "contorno occhi", "zampe di gallina"}},
}

// problemSignals are the ingredient and claim keywords that make a product
// relevant to a problem, with their additive weights.
var problemSignals = map[string][]signal{
	"acne": {
		{"azelaic", 10, "acido azelaico"},
		{"azelaico", 10, "acido azelaico"},
		{"salicilico", 8, "acido salicilico"},
		{"niacinamide", 5, "niacinamide"},
		{"zinco", 4, "zinco"},
		{"acne", 6, "indicato per acne"},
		{"purificante", 3, "azione purificante"},
	},
	"spots": {
		{"vitamina c", 8, "vitamina C"},
		{"tranexamico", 8, "acido tranexamico"},
		{"kojico", 6, "acido kojico"},
		{"niacinamide", 5, "niacinamide"},
		{"macchie", 6, "indicato per macchie"},
		{"illuminante", 3, "azione illuminante"},
	},
	"aging": {
		{"retinolo", 10, "retinolo"},
		{"retinal", 10, "retinale"},
		{"peptidi", 6, "peptidi"},
		{"antirughe", 6, "azione antirughe"},
		{"ialuronico", 4, "acido ialuronico"},
		{"collagene", 4, "collagene"},
	},
	"rosacea": {
		{"centella", 8, "centella asiatica"},
		{"azelaico", 6, "acido azelaico"},
		{"rossori", 6, "indicato per rossori"},
		{"lenitiv", 5, "azione lenitiva"},
	},
	"sensitive": {
		{"centella", 6, "centella asiatica"},
		{"lenitiv", 6, "azione lenitiva"},
		{"pantenolo", 5, "pantenolo"},
		{"sensibil", 5, "indicato per pelli sensibili"},
	},
	"pores": {
		{"niacinamide", 8, "niacinamide"},
		{"salicilico", 6, "acido salicilico"},
		{"pori", 6, "indicato per pori dilatati"},
		{"seboregolat", 4, "azione seboregolatrice"},
	},
	"dryness": {
		{"ialuronico", 8, "acido ialuronico"},
		{"ceramidi", 8, "ceramidi"},
		{"idratant", 4, "azione idratante"},
		{"nutrient", 3, "azione nutriente"},
	},
	"eyes": {
		{"contorno occhi", 8, "specifico contorno occhi"},
		{"occhiaie", 6, "indicato per occhiaie"},
		{"caffeina", 5, "caffeina"},
	},
}

const skinTypeBonus = 2

// ProblemKeys returns the canonical problem keys recognized in a problem description.
func ProblemKeys(problem string) []string {
	p := strings.ToLower(problem)
	var keys []string
	for _, pk := range problemKeys {
		for _, syn := range pk.synonyms {
			if strings.Contains(p, syn) {
				keys = append(keys, pk.key)
				break
			}
		}
	}
	return keys
}

// ScoreByProblem ranks products by relevance to the given problems. Each
// recognized problem adds the weights of the signals the product carries; a
// matching skin type adds a small bonus. Products scoring zero are omitted
// and ties keep catalog order.
func (i *Index) ScoreByProblem(problems []string, skinType string) []Scored {
	keys := make(map[string]bool)
	var ordered []string
	for _, p := range problems {
		for _, k := range ProblemKeys(p) {
			if !keys[k] {
				keys[k] = true
				ordered = append(ordered, k)
			}
		}
	}
	if len(ordered) == 0 {
		return nil
	}
	skin := strings.ToLower(strings.TrimSpace(skinType))

	out := make([]Scored, 0, len(i.products))
	for _, p := range i.products {
		haystack := productText(p)
		score := 0
		var reasons []string
		for _, k := range ordered {
			seen := make(map[string]bool)
			for _, sig := range problemSignals[k] {
				if seen[sig.label] || !strings.Contains(haystack, sig.keyword) {
					continue
				}
				seen[sig.label] = true
				score += sig.weight
				reasons = append(reasons, fmt.Sprintf("%s (%s)", sig.label, k))
			}
		}
		if score == 0 {
			continue
		}
		if skin != "" && (strings.Contains(haystack, "pelle "+skin) || strings.Contains(haystack, "pelli "+pluralize(skin))) {
			score += skinTypeBonus
			reasons = append(reasons, "adatto a pelle "+skin)
		}
		out = append(out, Scored{Product: p, Score: score, Reason: strings.Join(reasons, ", ")})
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	return out
}

// BestInCategory returns the highest-ranked product of a category, or the
// first catalog product of that category when nothing scores.
func (i *Index) BestInCategory(category string, ranked []Scored) *domain.ProductRecord {
	for _, s := range ranked {
		if strings.EqualFold(s.Product.Category, category) {
			p := s.Product
			return &p
		}
	}
	for _, p := range i.products {
		if strings.EqualFold(p.Category, category) {
			found := p
			return &found
		}
	}
	return nil
}

func productText(p domain.ProductRecord) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(p.Name))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(p.Description))
	for _, s := range p.Ingredients {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(s))
	}
	for _, s := range p.Properties {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(s))
	}
	return b.String()
}

// pluralize turns an Italian feminine singular adjective into its plural.
func pluralize(adj string) string {
	switch {
	case strings.HasSuffix(adj, "ca"):
		return adj[:len(adj)-2] + "che"
	case strings.HasSuffix(adj, "a"):
		return adj[:len(adj)-1] + "e"
	case strings.HasSuffix(adj, "e"):
		return adj[:len(adj)-1] + "i"
	}
	return adj
}
