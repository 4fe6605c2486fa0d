package dialogue

import (
	"regexp"

	"github.com/ashureev/skinconsult/internal/domain"
)

// ProductMatcher reports catalog products named in a message.
type ProductMatcher interface {
	Mentioned(text string) []domain.ProductRecord
}

var (
	productRequest = regexp.MustCompile(`(?i)quanto\s+costa|\bprezz[oi]\b|\bcosto\b|cerco\s+(un|una|uno|dei|delle)\s+(prodott|crem|sier|detergent|tonic|maschera|solare|contorno)|looking\s+for\s+a\s+product|avete\s+(un|una|uno)\s|dove\s+(posso\s+)?(comprare|acquistare)|mi\s+parli\s+(di|del|della)\s`)
	skinComplaint  = regexp.MustCompile(`(?i)\bho\s+(la|una)\s+pelle\b|\bho\s+(i|dei|tanti|molti|delle|le|tante|molte|spesso)\s+\pL+|\bsoffro\s+di\b|\bla\s+mia\s+pelle\b|\bmi\s+escono\b|\bmi\s+sono\s+(comparse|comparsi|venute|venuti)\b|\bho\s+problemi\s+di\b|\bmy\s+skin\b`)
)

// ClassifyIntent decides whether a message asks about a product, describes a
// skin problem, or neither. Product requests win over skin descriptions.
func ClassifyIntent(text string, hasAnalysis bool, products ProductMatcher) domain.Intent {
	if len(products.Mentioned(text)) > 0 || productRequest.MatchString(text) {
		return domain.IntentProductInfo
	}
	if hasAnalysis || skinComplaint.MatchString(text) {
		return domain.IntentSkinAnalysis
	}
	return domain.IntentNone
}
