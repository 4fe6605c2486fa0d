package dialogue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/domain"
)

// Canonical answer values.
const (
	AdviceCompleteRoutine = "Routine completa"
	AdditionalInfoNone    = "Nessuna"

	additionalNo  = "No, procedi pure"
	additionalYes = "Sì, voglio aggiungere dettagli"
)

var (
	SkinTypeChoices = []string{"Mista", "Secca", "Grassa", "Normale", "Asfittica"}
	AgeChoices      = []string{"16-25", "26-35", "36-45", "46-55", "56+"}
	ProblemChoices  = []string{
		"Acne/Brufoli",
		"Macchie/Discromie",
		"Rughe/Invecchiamento",
		"Rosacea/Couperose",
		"Pelle sensibile/Reattiva",
		"Pori dilatati",
	}
	AdviceChoices = []string{
		AdviceCompleteRoutine,
		"Detergente",
		"Siero",
		"Crema viso",
		"Contorno occhi",
		"Protezione solare",
		"Esfoliante",
		"Maschera",
		"Tonico",
	}
	AdditionalInfoChoices = []string{additionalNo, additionalYes}
)

// Question is one row of the questionnaire table. The step, its slot, the
// canonical wording and the forced choice-set live together so a reply for a
// step always carries that step's choices.
type Question struct {
	Step    domain.Step
	Slot    string
	Text    string
	Choices []string
	// Asks recognizes generated text that poses this question.
	Asks  *regexp.Regexp
	get   func(*domain.Answers) string
	set   func(*domain.Answers, string)
	parse func(string) (string, bool)
	ack   func(string) string
}

// Filled reports whether the question's slot already has a value.
func (q *Question) Filled(a *domain.Answers) bool {
	return q.get(a) != ""
}

// Value returns the slot value.
func (q *Question) Value(a *domain.Answers) string {
	return q.get(a)
}

// Fill sets the slot unless it already has a value. It reports whether the
// value was written.
func (q *Question) Fill(a *domain.Answers, v string) bool {
	if v == "" || q.Filled(a) {
		return false
	}
	q.set(a, v)
	return true
}

// Parse interprets a user answer to this question.
func (q *Question) Parse(text string) (string, bool) {
	return q.parse(strings.TrimSpace(text))
}

// Acknowledge returns the sentence used when the step is skipped because the
// slot was inferred earlier.
func (q *Question) Acknowledge(a *domain.Answers) string {
	return q.ack(q.get(a))
}

// Questions is the questionnaire in asking order.
var Questions = []*Question{
	{
		Step:    domain.StepAwaitingSkinType,
		Slot:    "skin_type",
		Text:    "Che tipo di pelle hai?",
		Choices: SkinTypeChoices,
		Asks:    regexp.MustCompile(`(?i)(che|quale)\s+tipo\s+di\s+pelle|tipo\s+di\s+pelle\s+hai|com['’]è\s+la\s+tua\s+pelle`),
		get:     func(a *domain.Answers) string { return a.SkinType },
		set:     func(a *domain.Answers, v string) { a.SkinType = v },
		parse:   parseSkinType,
		ack:     func(v string) string { return "Mi hai già detto che la tua pelle è " + strings.ToLower(v) + "." },
	},
	{
		Step:    domain.StepAwaitingAge,
		Slot:    "age",
		Text:    "Qual è la tua fascia d'età?",
		Choices: AgeChoices,
		Asks:    regexp.MustCompile(`(?i)fascia\s+d['’]\s*et[àa]|quanti\s+anni\s+hai|la\s+tua\s+et[àa]`),
		get:     func(a *domain.Answers) string { return a.Age },
		set:     func(a *domain.Answers, v string) { a.Age = v },
		parse:   parseAge,
		ack:     func(v string) string { return "Ho preso nota della tua fascia d'età (" + v + ")." },
	},
	{
		Step:    domain.StepAwaitingProblem,
		Slot:    "main_issue",
		Text:    "Qual è la problematica principale che vorresti migliorare?",
		Choices: ProblemChoices,
		Asks:    regexp.MustCompile(`(?i)problematica|problema\s+principale|cosa\s+vorresti\s+migliorare`),
		get:     func(a *domain.Answers) string { return a.MainIssue },
		set:     func(a *domain.Answers, v string) { a.MainIssue = v },
		parse:   parseProblem,
		ack:     func(v string) string { return "Ho capito che la tua preoccupazione principale è: " + v + "." },
	},
	{
		Step:    domain.StepAwaitingAdviceType,
		Slot:    "advice_type",
		Text:    "Che tipo di consiglio desideri?",
		Choices: AdviceChoices,
		Asks:    regexp.MustCompile(`(?i)tipo\s+di\s+consiglio|che\s+consiglio\s+desideri|routine\s+completa\s+o\s+(un|uno|una)`),
		get:     func(a *domain.Answers) string { return a.AdviceType },
		set:     func(a *domain.Answers, v string) { a.AdviceType = v },
		parse:   parseAdvice,
		ack:     func(v string) string { return "Mi concentro su: " + v + "." },
	},
	{
		Step:    domain.StepAwaitingAdditionalInfo,
		Slot:    "additional_info",
		Text:    "Vuoi aggiungere altre informazioni sulla tua pelle prima che prepari la tua routine?",
		Choices: AdditionalInfoChoices,
		Asks:    regexp.MustCompile(`(?i)(altre|ulteriori)\s+informazioni|qualcos['’]altro\s+da\s+aggiungere`),
		get:     func(a *domain.Answers) string { return a.AdditionalInfo },
		set:     func(a *domain.Answers, v string) { a.AdditionalInfo = v },
		parse:   parseAdditionalInfo,
		ack:     func(string) string { return "Grazie per i dettagli aggiuntivi." },
	},
}

// QuestionFor returns the question asked in step, or nil.
func QuestionFor(step domain.Step) *Question {
	for _, q := range Questions {
		if q.Step == step {
			return q
		}
	}
	return nil
}

// ChoicesFor returns the forced choice-set of step, or nil for non-question steps.
func ChoicesFor(step domain.Step) []string {
	if q := QuestionFor(step); q != nil {
		return append([]string(nil), q.Choices...)
	}
	return nil
}

// AskedQuestion returns the question whose pattern matches text, or nil.
func AskedQuestion(text string) *Question {
	for _, q := range Questions {
		if q.Asks.MatchString(text) {
			return q
		}
	}
	return nil
}

func questionIndex(step domain.Step) int {
	for i, q := range Questions {
		if q.Step == step {
			return i
		}
	}
	return -1
}

func matchChoice(text string, choices []string) (string, bool) {
	for _, c := range choices {
		if strings.EqualFold(strings.TrimSpace(text), c) {
			return c, true
		}
	}
	return "", false
}

var skinTypeWords = regexp.MustCompile(`(?i)\b(mist[ae]|secc[ah]e?|grass[ae]|normal[ei]|asfittic[ah]e?)\b`)

func canonicalSkinType(word string) string {
	w := strings.ToLower(word)
	switch {
	case strings.HasPrefix(w, "mist"):
		return "Mista"
	case strings.HasPrefix(w, "secc"):
		return "Secca"
	case strings.HasPrefix(w, "grass"):
		return "Grassa"
	case strings.HasPrefix(w, "normal"):
		return "Normale"
	case strings.HasPrefix(w, "asfittic"):
		return "Asfittica"
	}
	return ""
}

func parseSkinType(text string) (string, bool) {
	if c, ok := matchChoice(text, SkinTypeChoices); ok {
		return c, true
	}
	if m := skinTypeWords.FindString(text); m != "" {
		return canonicalSkinType(m), true
	}
	return "", false
}

var (
	ageBand   = regexp.MustCompile(`\b\d{1,2}\s*[-–]\s*\d{1,2}\b|\b56\s*\+`)
	ageNumber = regexp.MustCompile(`\b(\d{1,2})\b`)
)

// AgeBand maps an age in years to its band.
func AgeBand(years int) string {
	switch {
	case years <= 0:
		return ""
	case years <= 25:
		return "16-25"
	case years <= 35:
		return "26-35"
	case years <= 45:
		return "36-45"
	case years <= 55:
		return "46-55"
	default:
		return "56+"
	}
}

func parseAge(text string) (string, bool) {
	// A range must be one of the offered bands; anything else is re-asked.
	if m := ageBand.FindString(text); m != "" {
		compact := strings.NewReplacer(" ", "", "–", "-").Replace(m)
		return matchChoice(compact, AgeChoices)
	}
	for _, m := range ageNumber.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 10 {
			return AgeBand(n), true
		}
	}
	return "", false
}

var problemChoiceByKey = map[string]string{
	"acne":      "Acne/Brufoli",
	"spots":     "Macchie/Discromie",
	"aging":     "Rughe/Invecchiamento",
	"rosacea":   "Rosacea/Couperose",
	"sensitive": "Pelle sensibile/Reattiva",
	"pores":     "Pori dilatati",
}

// IssueFromText returns the canonical main issue recognized in text, or "".
func IssueFromText(text string) string {
	for _, k := range catalog.ProblemKeys(text) {
		if c, ok := problemChoiceByKey[k]; ok {
			return c
		}
	}
	return ""
}

func parseProblem(text string) (string, bool) {
	if c, ok := matchChoice(text, ProblemChoices); ok {
		return c, true
	}
	if c := IssueFromText(text); c != "" {
		return c, true
	}
	if letterCount(text) >= 3 {
		return text, true
	}
	return "", false
}

var adviceByCategory = map[string]string{
	catalog.CategoryKit:         AdviceCompleteRoutine,
	catalog.CategoryCleanser:    "Detergente",
	catalog.CategorySerum:       "Siero",
	catalog.CategoryMoisturizer: "Crema viso",
	catalog.CategoryEyeCare:     "Contorno occhi",
	catalog.CategorySunscreen:   "Protezione solare",
	catalog.CategoryExfoliant:   "Esfoliante",
	catalog.CategoryMask:        "Maschera",
	catalog.CategoryToner:       "Tonico",
}

// AdviceCategory returns the catalog category of a single-product advice type.
func AdviceCategory(advice string) string {
	for cat, a := range adviceByCategory {
		if a == advice && cat != catalog.CategoryKit {
			return cat
		}
	}
	return ""
}

func parseAdvice(text string) (string, bool) {
	if c, ok := matchChoice(text, AdviceChoices); ok {
		return c, true
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "complet") {
		return AdviceCompleteRoutine, true
	}
	if a, ok := adviceByCategory[catalog.CategoryFor(lower)]; ok {
		return a, true
	}
	return "", false
}

var declineWords = regexp.MustCompile(`(?i)^(no|nulla|niente|nessuna|procedi|vai pure|va bene)\b`)

func parseAdditionalInfo(text string) (string, bool) {
	switch {
	case strings.EqualFold(text, additionalNo), declineWords.MatchString(text):
		return AdditionalInfoNone, true
	case strings.EqualFold(text, additionalYes):
		return "", false
	case letterCount(text) >= 3:
		return text, true
	}
	return "", false
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 0x7f {
			n++
		}
	}
	return n
}
