// Package validation checks generated replies against the product catalog
// and repairs them when they reference products that do not exist.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/domain"
)

// Kind classifies a validation issue.
type Kind string

const (
	KindForbiddenProduct      Kind = "forbidden-product"
	KindMissingLink           Kind = "missing-link"
	KindForeignURL            Kind = "foreign-url"
	KindGenericReference      Kind = "generic-reference"
	KindIncompleteRoutineStep Kind = "incomplete-routine-step"
)

// Blocking reports whether an issue of this kind requires a rewrite.
func (k Kind) Blocking() bool {
	return k != KindGenericReference
}

// Issue is one problem found in a reply.
type Issue struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}

// Blocking reports whether any issue requires a rewrite.
func Blocking(issues []Issue) bool {
	for _, is := range issues {
		if is.Kind.Blocking() {
			return true
		}
	}
	return false
}

// DefaultDenylist holds product names the model has been seen to invent.
var DefaultDenylist = []string{
	"Crema Defense",
	"Siero Defense",
	"Hydra Boost",
	"Mousse Detergente Delicata",
	"Crema Notte Rigenerante Plus",
	"Siero Illuminante Plus",
}

// Catalog is the part of the catalog index the validator reads.
type Catalog interface {
	AllNames() []string
	Mentioned(text string) []domain.ProductRecord
	Products() []domain.ProductRecord
}

// Config configures a Validator.
type Config struct {
	// Domain is the approved URL prefix, e.g. https://www.example.com.
	Domain string
	// Brand is matched by the generic-reference scan.
	Brand    string
	Denylist []string
}

type forbidden struct {
	token   string
	display string
}

// Validator runs the catalog checks. It holds no mutable state.
type Validator struct {
	catalog   Catalog
	domain    string
	forbidden []forbidden
	generic   *regexp.Regexp
}

var (
	urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>()\[\]"']+`)

	morningHeading = regexp.MustCompile(`(?i)^[\s#*_>\-]*(?:routine\s+)?(?:del\s+|della\s+|di\s+)?(?:mattina|mattino|mattutina|morning)\b`)
	eveningHeading = regexp.MustCompile(`(?i)^[\s#*_>\-]*(?:routine\s+)?(?:del\s+|della\s+|di\s+)?(?:sera|serale|notte|evening|night)\b`)
	markdownHeader = regexp.MustCompile(`^\s*#{1,6}\s`)
)

const maxHeadingLen = 80

var genericNouns = []string{
	"detergente", "crema", "siero", "tonico", "contorno occhi",
	"protezione solare", "solare", "maschera", "esfoliante", "routine",
}

// New builds a validator. Denylist entries that are part of a real catalog
// name are ignored so the allow-list always wins.
func New(cat Catalog, cfg Config) *Validator {
	v := &Validator{
		catalog: cat,
		domain:  strings.TrimRight(cfg.Domain, "/"),
	}

	var allowed []string
	for _, n := range cat.AllNames() {
		allowed = append(allowed, Normalize(n))
	}
	for _, d := range cfg.Denylist {
		tok := Normalize(d)
		if tok == "" || containsAny(allowed, tok) {
			continue
		}
		v.forbidden = append(v.forbidden, forbidden{token: tok, display: d})
	}

	if brand := strings.TrimSpace(cfg.Brand); brand != "" {
		nouns := make([]string, len(genericNouns))
		for i, n := range genericNouns {
			nouns[i] = strings.ReplaceAll(regexp.QuoteMeta(n), " ", `\s+`)
		}
		v.generic = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(brand) + `\s+(?:` + strings.Join(nouns, "|") + `)\b`)
	}
	return v
}

// Normalize lowercases s and strips every character that is not a letter or digit.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAny(haystacks []string, needle string) bool {
	for _, h := range haystacks {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

// Validate returns every issue found in text.
func (v *Validator) Validate(text string) []Issue {
	var issues []Issue
	issues = append(issues, v.scanForbidden(text)...)
	issues = append(issues, v.scanLinks(text)...)
	issues = append(issues, v.scanDomains(text)...)
	issues = append(issues, v.scanGeneric(text)...)
	issues = append(issues, v.scanRoutine(text)...)
	return issues
}

// ContainsForbidden reports whether text mentions a denylisted name in any spelling.
func (v *Validator) ContainsForbidden(text string) bool {
	return len(v.scanForbidden(text)) > 0
}

func (v *Validator) scanForbidden(text string) []Issue {
	norm := Normalize(text)
	var out []Issue
	for _, f := range v.forbidden {
		if strings.Contains(norm, f.token) {
			out = append(out, Issue{Kind: KindForbiddenProduct, Detail: f.display})
		}
	}
	return out
}

func (v *Validator) scanLinks(text string) []Issue {
	var out []Issue
	for _, p := range v.catalog.Mentioned(text) {
		if p.URL == "" || !strings.Contains(text, p.URL) {
			out = append(out, Issue{Kind: KindMissingLink, Detail: p.Name})
		}
	}
	return out
}

func (v *Validator) scanDomains(text string) []Issue {
	var out []Issue
	seen := make(map[string]bool)
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?*_")
		if seen[u] || v.inDomain(u) {
			continue
		}
		seen[u] = true
		out = append(out, Issue{Kind: KindForeignURL, Detail: u})
	}
	return out
}

func (v *Validator) inDomain(u string) bool {
	if v.domain == "" {
		return true
	}
	if !strings.HasPrefix(strings.ToLower(u), strings.ToLower(v.domain)) {
		return false
	}
	rest := u[len(v.domain):]
	return rest == "" || strings.ContainsRune("/?#", rune(rest[0]))
}

func (v *Validator) scanGeneric(text string) []Issue {
	if v.generic == nil {
		return nil
	}
	names := v.catalog.AllNames()
	var out []Issue
	for _, loc := range v.generic.FindAllStringIndex(text, -1) {
		if followedByProduct(text[loc[1]:], names) {
			continue
		}
		out = append(out, Issue{Kind: KindGenericReference, Detail: text[loc[0]:loc[1]]})
	}
	return out
}

func followedByProduct(rest string, names []string) bool {
	rest = strings.ToLower(strings.TrimLeft(rest, " \t*_\"'“:"))
	for _, n := range names {
		if strings.HasPrefix(rest, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// routineStep is a required step of a routine section.
type routineStep struct {
	name       string
	categories []string
	morning    bool
}

var routineSteps = []routineStep{
	{name: "cleanse", categories: []string{catalog.CategoryCleanser}},
	{name: "treat", categories: []string{catalog.CategorySerum, catalog.CategoryExfoliant, catalog.CategoryToner}},
	{name: "moisturize", categories: []string{catalog.CategoryMoisturizer, catalog.CategoryEyeCare}},
	{name: "protect", categories: []string{catalog.CategorySunscreen}, morning: true},
}

func (v *Validator) scanRoutine(text string) []Issue {
	morning, evening, ok := RoutineSections(text)
	if !ok {
		return nil
	}
	var out []Issue
	out = append(out, v.checkSection("morning", morning, text, true)...)
	out = append(out, v.checkSection("evening", evening, text, false)...)
	return out
}

func (v *Validator) checkSection(label, section, full string, isMorning bool) []Issue {
	have := make(map[string]bool)
	for _, p := range v.catalog.Mentioned(section) {
		if p.URL != "" && strings.Contains(full, p.URL) {
			have[p.Category] = true
		}
	}

	var out []Issue
	for _, step := range routineSteps {
		if step.morning && !isMorning {
			continue
		}
		found := false
		for _, c := range step.categories {
			if have[c] {
				found = true
				break
			}
		}
		if !found {
			out = append(out, Issue{Kind: KindIncompleteRoutineStep, Detail: label + ": " + step.name})
		}
	}
	return out
}

// RoutineSections splits text into its morning and evening routine sections.
// ok is false unless both are present. A section runs until the next
// routine heading or markdown header.
func RoutineSections(text string) (morning, evening string, ok bool) {
	lines := strings.Split(text, "\n")
	var mb, eb strings.Builder
	var current *strings.Builder
	var seenMorning, seenEvening bool

	for _, line := range lines {
		short := len(strings.TrimSpace(line)) <= maxHeadingLen
		switch {
		case short && morningHeading.MatchString(line):
			current, seenMorning = &mb, true
			continue
		case short && eveningHeading.MatchString(line):
			current, seenEvening = &eb, true
			continue
		case markdownHeader.MatchString(line):
			current = nil
			continue
		}
		if current != nil {
			current.WriteString(line)
			current.WriteByte('\n')
		}
	}
	return mb.String(), eb.String(), seenMorning && seenEvening
}
