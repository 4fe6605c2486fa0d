package dialogue

import (
	"strings"

	"github.com/ashureev/skinconsult/internal/domain"
)

type bundleRule struct {
	issue []string
	aging bool
	skin  string
	name  string
	slug  string
}

// bundleRules is evaluated top to bottom; the first match wins.
var bundleRules = []bundleRule{
	{issue: []string{"rosacea"}, name: "Routine Pelle con Rosacea", slug: "routine-pelle-rosacea"},
	{issue: []string{"macchie", "discromie", "pigmentazione"}, name: "Routine Anti-Macchie", slug: "routine-anti-macchie"},
	{issue: []string{"acne", "brufoli", "tardiva"}, name: "Routine Pelle Acne Tardiva", slug: "routine-pelle-acne-tardiva"},
	{issue: []string{"sensibile", "reattiva", "atopica"}, name: "Routine Pelle Sensibile", slug: "routine-pelle-sensibile"},
	{aging: true, skin: "mista", name: "Routine Prime Rughe", slug: "routine-prime-rughe"},
	{aging: true, skin: "secca", name: "Routine Antirughe", slug: "routine-antirughe"},
	{skin: "mista", name: "Routine Pelle Mista", slug: "routine-pelle-mista"},
	{skin: "grassa", name: "Routine Pelle Grassa", slug: "routine-pelle-grassa"},
	{skin: "secca", name: "Routine Pelle Secca", slug: "routine-pelle-secca"},
}

var agingWords = []string{"rughe", "invecchiamento", "anti-age", "antiage", "linee", "rilassamento"}

// Resolver maps questionnaire answers to a routine kit.
type Resolver struct {
	domain string
}

// NewResolver builds kit URLs under domain.
func NewResolver(domain string) Resolver {
	return Resolver{domain: strings.TrimRight(domain, "/")}
}

// Resolve returns the kit for the answers, or nil when no rule applies.
func (r Resolver) Resolve(skinType, mainIssue string) *domain.Bundle {
	skin := strings.ToLower(skinType)
	issue := strings.ToLower(mainIssue)
	aging := containsAnyWord(issue, agingWords)

	for _, rule := range bundleRules {
		if len(rule.issue) > 0 && !containsAnyWord(issue, rule.issue) {
			continue
		}
		if rule.aging && !aging {
			continue
		}
		if rule.skin != "" && !strings.Contains(skin, rule.skin) {
			continue
		}
		return &domain.Bundle{Name: rule.name, URL: r.domain + "/prodotto/" + rule.slug + "/"}
	}
	return nil
}

// FallbackBundle is the catalog-wide routine page used when Resolve finds nothing.
func (r Resolver) FallbackBundle() domain.Bundle {
	return domain.Bundle{Name: "Skincare Routine", URL: r.domain + "/skincare-routine/"}
}

// Bundles lists every kit the resolver can return.
func (r Resolver) Bundles() []domain.Bundle {
	out := make([]domain.Bundle, 0, len(bundleRules))
	for _, rule := range bundleRules {
		out = append(out, domain.Bundle{Name: rule.name, URL: r.domain + "/prodotto/" + rule.slug + "/"})
	}
	return out
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
