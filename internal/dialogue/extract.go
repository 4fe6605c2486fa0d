package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/skinconsult/internal/catalog"
)

// AnalysisThreshold is the minimum photo-analysis score that counts as a finding.
const AnalysisThreshold = 61

// ErrMalformedAnalysis is returned for photo-analysis payloads that cannot be read.
var ErrMalformedAnalysis = errors.New("malformed analysis payload")

var (
	skinTypePhrase = regexp.MustCompile(`(?i)\bpell[ei]\s+(?:molto\s+|abbastanza\s+|piuttosto\s+|un\s+po['’]\s*)?(mist[ae]|secc[ah]e?|grass[ae]|normal[ei]|asfittic[ah]e?)\b`)
	ageInYears     = regexp.MustCompile(`(?i)\b(\d{1,2})\s*anni\b`)
)

var problemLabels = map[string]string{
	"acne":      "Acne/Brufoli",
	"spots":     "Macchie/Discromie",
	"aging":     "Rughe/Invecchiamento",
	"rosacea":   "Rosacea/Couperose",
	"sensitive": "Pelle sensibile/Reattiva",
	"pores":     "Pori dilatati",
	"dryness":   "Secchezza",
	"eyes":      "Occhiaie/Contorno occhi",
}

// Extraction holds the slot values recognized in free text.
type Extraction struct {
	SkinType  string
	Age       string
	MainIssue string
	Problems  []string
}

// Empty reports whether nothing was recognized.
func (e Extraction) Empty() bool {
	return e.SkinType == "" && e.Age == "" && e.MainIssue == "" && len(e.Problems) == 0
}

// Extract scans a free-text message for skin type, age and skin problems.
func Extract(text string) Extraction {
	var out Extraction
	if m := skinTypePhrase.FindStringSubmatch(text); m != nil {
		out.SkinType = canonicalSkinType(m[1])
	}
	if m := ageInYears.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 10 {
			out.Age = AgeBand(n)
		}
	}
	out.MainIssue = IssueFromText(text)
	for _, k := range catalog.ProblemKeys(text) {
		out.Problems = append(out.Problems, problemLabels[k])
	}
	return out
}

// analysisKeys lists the scores read from a photo analysis, in tie-break order.
var analysisKeys = []struct {
	key   string
	issue string
}{
	{"acne", "Acne/Brufoli"},
	{"redness", "Rosacea/Couperose"},
	{"spots", "Macchie/Discromie"},
	{"wrinkles", "Rughe/Invecchiamento"},
	{"pores", "Pori dilatati"},
}

// Analysis is a photo-analysis score report.
type Analysis struct {
	Scores map[string]float64
}

// ParseAnalysis reads a JSON score report, either flat ({"acne": 72}) or
// nested under "scores".
func ParseAnalysis(raw string) (*Analysis, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAnalysis, err)
	}
	src := doc
	if nested, ok := doc["scores"].(map[string]any); ok {
		src = nested
	}

	scores := make(map[string]float64)
	for k, v := range src {
		if f, ok := v.(float64); ok {
			scores[strings.ToLower(k)] = f
		}
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no numeric scores", ErrMalformedAnalysis)
	}
	return &Analysis{Scores: scores}, nil
}

// MainIssue returns the issue with the highest score at or above the
// threshold, or "" when no score qualifies.
func (a *Analysis) MainIssue() string {
	best, bestScore := "", float64(AnalysisThreshold)-1
	for _, k := range analysisKeys {
		if s, ok := a.Scores[k.key]; ok && s >= AnalysisThreshold && s > bestScore {
			best, bestScore = k.issue, s
		}
	}
	return best
}

// Problems returns every issue at or above the threshold.
func (a *Analysis) Problems() []string {
	var out []string
	for _, k := range analysisKeys {
		if a.Scores[k.key] >= AnalysisThreshold {
			out = append(out, k.issue)
		}
	}
	return out
}
