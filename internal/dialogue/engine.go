// Package dialogue drives a consultation: it classifies each message, walks
// the intake questionnaire and produces validated recommendations.
package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/imaging"
	"github.com/ashureev/skinconsult/internal/llm"
	"github.com/ashureev/skinconsult/internal/metrics"
	"github.com/ashureev/skinconsult/internal/retrieval"
	"github.com/ashureev/skinconsult/internal/validation"
)

// Input is one user message.
type Input struct {
	Text          string
	ImageBase64   string
	ImageMimeType string
	// Analysis is an optional JSON photo-analysis score report.
	Analysis string
}

// Reply is the engine's answer to one message.
type Reply struct {
	Text     string
	Choices  []string
	Intent   domain.Intent
	Step     domain.Step
	Fallback bool
}

// HasChoices reports whether the reply carries a forced choice-set.
func (r Reply) HasChoices() bool {
	return len(r.Choices) > 0
}

// Config tunes the engine.
type Config struct {
	BrandName       string
	ShopURL         string
	Temperature     float64
	MaxOutputTokens int
	TurnTimeout     time.Duration
	HistoryTurns    int
	RetrievalTopK   int
}

// Deps are the engine's collaborators. Catalog, Completer and Repairer are required.
type Deps struct {
	Catalog    *catalog.Index
	Completer  llm.Completer
	Retriever  retrieval.Provider
	Repairer   *validation.Repairer
	Resolver   Resolver
	Preprocess func(payload string) (imaging.Processed, error)
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Engine is stateless; all conversation state lives in the session passed to
// HandleTurn.
type Engine struct {
	catalog    *catalog.Index
	completer  llm.Completer
	retriever  retrieval.Provider
	repairer   *validation.Repairer
	resolver   Resolver
	preprocess func(string) (imaging.Processed, error)
	metrics    metrics.Recorder
	logger     *slog.Logger
	cfg        Config
}

// NewEngine creates an engine.
func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Retriever == nil {
		deps.Retriever = retrieval.None{}
	}
	if deps.Preprocess == nil {
		deps.Preprocess = imaging.Preprocess
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 20
	}
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = 3
	}
	if cfg.BrandName == "" {
		cfg.BrandName = "DermaLab"
	}
	return &Engine{
		catalog:    deps.Catalog,
		completer:  deps.Completer,
		retriever:  deps.Retriever,
		repairer:   deps.Repairer,
		resolver:   deps.Resolver,
		preprocess: deps.Preprocess,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        cfg,
	}
}

// Greeting introduces the assistant once per session.
func (e *Engine) Greeting(s *domain.Session) Reply {
	text := welcomeBack
	if !s.HasIntroduced {
		text = greetingText(s.UserName, e.cfg.BrandName)
	}
	s.HasIntroduced = true
	s.RecordTurn(domain.SpeakerModel, text, nil)
	return Reply{Text: text, Step: s.CurrentStep}
}

// HandleTurn processes one user message against s and returns the reply.
// The caller must serialize calls for the same session. HandleTurn never
// fails: every error path ends in a canned reply.
func (e *Engine) HandleTurn(ctx context.Context, s *domain.Session, in Input) Reply {
	if e.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TurnTimeout)
		defer cancel()
	}
	logger := e.logger.With("session_id", s.ID)

	img := e.prepareImage(logger, in)
	s.RecordTurn(domain.SpeakerUser, in.Text, img)

	var analysis *Analysis
	var analysisErr error
	if strings.TrimSpace(in.Analysis) != "" {
		analysis, analysisErr = ParseAnalysis(in.Analysis)
		if analysisErr != nil {
			logger.Warn("photo analysis unreadable", "error", analysisErr)
		}
	}
	hasAnalysis := strings.TrimSpace(in.Analysis) != "" || img != nil

	intent := ClassifyIntent(in.Text, hasAnalysis, e.catalog)
	s.LastIntent = intent

	var reply Reply
	switch {
	case intent == domain.IntentProductInfo:
		e.applyExtraction(s, in.Text, analysis)
		reply = e.productInfo(ctx, s, in.Text)
	case s.CurrentStep == domain.StepCompleted && !s.FinalDelivered:
		e.applyExtraction(s, in.Text, analysis)
		reply = e.conclude(ctx, s, nil)
	case s.CurrentStep == domain.StepCompleted:
		reply = e.continuation(ctx, s, in.Text)
	case s.StructuredFlowActive || s.CurrentStep.IsQuestion():
		reply = e.advance(ctx, s, in.Text, analysis)
	case intent == domain.IntentSkinAnalysis:
		e.applyExtraction(s, in.Text, analysis)
		reply = e.startFlow(s, analysis, analysisErr)
	default:
		e.applyExtraction(s, in.Text, analysis)
		reply = e.continuation(ctx, s, in.Text)
	}
	reply.Intent = intent
	reply.Step = s.CurrentStep

	s.HasIntroduced = true
	s.RecordTurn(domain.SpeakerModel, reply.Text, nil)
	e.metrics.Inc(ctx, metrics.Turns, map[string]string{"intent": intentLabel(intent), "step": string(s.CurrentStep)}, 1)
	logger.Info("turn handled",
		"intent", intentLabel(intent),
		"step", s.CurrentStep,
		"choices", len(reply.Choices),
		"fallback", reply.Fallback,
		"message_len", len(in.Text),
	)
	return reply
}

func intentLabel(i domain.Intent) string {
	if i == domain.IntentNone {
		return "none"
	}
	return string(i)
}

func (e *Engine) prepareImage(logger *slog.Logger, in Input) *domain.InlineImage {
	if strings.TrimSpace(in.ImageBase64) == "" {
		return nil
	}
	out, err := e.preprocess(in.ImageBase64)
	if err != nil {
		logger.Warn("image preprocessing failed, continuing without image", "error", err)
		return nil
	}
	return &domain.InlineImage{MimeType: out.MimeType, Base64: out.Base64}
}

// applyExtraction fills empty slots from free text and the photo analysis.
// Filled slots are never overwritten.
func (e *Engine) applyExtraction(s *domain.Session, text string, analysis *Analysis) {
	a := &s.Answers
	ext := Extract(text)
	if analysis != nil {
		if issue := analysis.MainIssue(); issue != "" && ext.MainIssue == "" {
			ext.MainIssue = issue
		}
		ext.Problems = append(ext.Problems, analysis.Problems()...)
	}

	QuestionFor(domain.StepAwaitingSkinType).Fill(a, ext.SkinType)
	QuestionFor(domain.StepAwaitingAge).Fill(a, ext.Age)
	QuestionFor(domain.StepAwaitingProblem).Fill(a, ext.MainIssue)
	for _, p := range ext.Problems {
		a.AddProblem(p)
	}
}

func (e *Engine) startFlow(s *domain.Session, analysis *Analysis, analysisErr error) Reply {
	lead := flowIntro
	switch {
	case analysisErr != nil:
		lead = analysisUnreadable
	case analysis != nil && analysis.MainIssue() != "":
		lead = analysisIntro(analysis.MainIssue())
	}

	s.StructuredFlowActive = true
	s.CurrentStep = domain.StepAwaitingSkinType

	acks := []string{lead}
	for _, q := range Questions {
		if q.Filled(&s.Answers) {
			acks = append(acks, q.Acknowledge(&s.Answers))
			continue
		}
		s.CurrentStep = q.Step
		return Reply{Text: joinParts(append(acks, q.Text)...), Choices: ChoicesFor(q.Step)}
	}
	// Every intake slot is known already; nothing left but the advice type,
	// which extraction never fills, so this is unreachable in practice.
	return Reply{Text: joinParts(acks...)}
}

func (e *Engine) advance(ctx context.Context, s *domain.Session, text string, analysis *Analysis) Reply {
	q := QuestionFor(s.CurrentStep)
	if q == nil {
		return e.proceed(ctx, s, -1, nil)
	}

	if q.Step == domain.StepAwaitingAdditionalInfo && strings.EqualFold(strings.TrimSpace(text), additionalYes) {
		return Reply{Text: detailsPrompt, Choices: ChoicesFor(q.Step)}
	}

	if !q.Filled(&s.Answers) {
		if v, ok := q.Parse(text); ok {
			q.Fill(&s.Answers, v)
		}
	}
	e.applyExtraction(s, text, analysis)

	if !q.Filled(&s.Answers) {
		return Reply{Text: joinParts(repromptLead, q.Text), Choices: ChoicesFor(q.Step)}
	}
	if q.Step == domain.StepAwaitingProblem {
		s.Answers.AddProblem(s.Answers.MainIssue)
	}
	return e.proceed(ctx, s, questionIndex(q.Step), nil)
}

// proceed moves to the first unanswered question after index from, skipping
// and acknowledging slots that are already filled.
func (e *Engine) proceed(ctx context.Context, s *domain.Session, from int, acks []string) Reply {
	for i := from + 1; i < len(Questions); i++ {
		q := Questions[i]
		if q.Step == domain.StepAwaitingAdditionalInfo && !wantsRoutine(s.Answers) {
			return e.conclude(ctx, s, acks)
		}
		if q.Filled(&s.Answers) {
			acks = append(acks, q.Acknowledge(&s.Answers))
			continue
		}
		s.CurrentStep = q.Step
		s.StructuredFlowActive = true
		text, fallback := e.phraseQuestion(ctx, s, q)
		return Reply{Text: joinParts(append(acks, text)...), Choices: ChoicesFor(q.Step), Fallback: fallback}
	}
	return e.conclude(ctx, s, acks)
}

func wantsRoutine(a domain.Answers) bool {
	return a.AdviceType == "" || a.AdviceType == AdviceCompleteRoutine
}

// phraseQuestion asks the model to word the next question. Off-script,
// invalid or missing output falls back to the canonical wording.
func (e *Engine) phraseQuestion(ctx context.Context, s *domain.Session, q *Question) (string, bool) {
	out, err := e.complete(ctx, e.request(s, questionDirective+q.Text, answersContext(s.Answers)))
	reason := ""
	switch {
	case err != nil:
		reason = "llm_error"
	case out == "":
		reason = "llm_empty"
	case asksOtherQuestion(out, q):
		reason = "off_script"
	case validation.Blocking(e.repairer.Validator().Validate(out)):
		reason = "invalid"
	}
	if reason != "" {
		e.recordFallback(ctx, reason, q.Step)
		return q.Text, true
	}
	if !q.Asks.MatchString(out) {
		out = joinParts(out, q.Text)
	}
	return out, false
}

func asksOtherQuestion(text string, q *Question) bool {
	for _, other := range Questions {
		if other != q && other.Asks.MatchString(text) {
			return true
		}
	}
	return false
}

// conclude delivers the terminal recommendation and freezes the questionnaire.
func (e *Engine) conclude(ctx context.Context, s *domain.Session, acks []string) Reply {
	var reply Reply
	if wantsRoutine(s.Answers) {
		reply = e.finalRecommendation(ctx, s)
	} else {
		reply = e.specificProduct(ctx, s)
	}
	reply.Text = joinParts(append(acks, reply.Text)...)
	s.FinalDelivered = true
	s.Complete()
	return reply
}

func (e *Engine) bundleFor(a domain.Answers) domain.Bundle {
	if b := e.resolver.Resolve(a.SkinType, a.MainIssue); b != nil {
		return *b
	}
	return e.resolver.FallbackBundle()
}

func (e *Engine) ranked(a domain.Answers) []catalog.Scored {
	problems := append([]string{a.MainIssue}, a.SkinProblems...)
	if a.AdditionalInfo != "" && a.AdditionalInfo != AdditionalInfoNone {
		problems = append(problems, a.AdditionalInfo)
	}
	return e.catalog.ScoreByProblem(problems, a.SkinType)
}

func (e *Engine) finalRecommendation(ctx context.Context, s *domain.Session) Reply {
	bundle := e.bundleFor(s.Answers)
	ranked := e.ranked(s.Answers)

	var candidates []domain.ProductRecord
	for _, c := range []string{catalog.CategoryCleanser, catalog.CategoryToner, catalog.CategorySerum,
		catalog.CategoryExfoliant, catalog.CategoryMoisturizer, catalog.CategorySunscreen} {
		if p := e.catalog.BestInCategory(c, ranked); p != nil {
			candidates = append(candidates, *p)
		}
	}
	snippets := e.retrieve(ctx, joinParts(s.Answers.MainIssue, s.Answers.SkinType, s.Answers.AdditionalInfo))

	draft, _ := e.complete(ctx, e.request(s, finalDirective,
		answersContext(s.Answers),
		productsContext("Prodotti consigliati dal catalogo", candidates),
		"Kit da consigliare: "+bundle.Name+" "+bundle.URL,
		snippetsContext(snippets),
	))
	out := e.repairer.Repair(ctx, draft, func() string {
		return routineTemplate(e.catalog, s.Answers, ranked, bundle)
	})
	if out.Fallback {
		e.recordFallback(ctx, "final_template", domain.StepCompleted)
	}

	text := validation.EnsureBundleLink(out.Text, bundle)
	return Reply{Text: validation.EnsureClosing(text), Fallback: out.Fallback}
}

func (e *Engine) specificProduct(ctx context.Context, s *domain.Session) Reply {
	category := AdviceCategory(s.Answers.AdviceType)
	p := e.catalog.BestInCategory(category, e.ranked(s.Answers))
	if p == nil {
		e.recordFallback(ctx, "no_product", domain.StepCompleted)
		return Reply{Text: validation.EnsureClosing(notFound(e.cfg.ShopURL)), Fallback: true}
	}

	draft, _ := e.complete(ctx, e.request(s, specificDirective,
		answersContext(s.Answers),
		productsContext("Prodotto da consigliare", []domain.ProductRecord{*p}),
	))
	out := e.repairer.Repair(ctx, draft, func() string {
		return specificTemplate(s.Answers, *p)
	})
	if out.Fallback {
		e.recordFallback(ctx, "specific_template", domain.StepCompleted)
	}
	return Reply{Text: validation.EnsureClosing(out.Text), Fallback: out.Fallback}
}

func (e *Engine) productInfo(ctx context.Context, s *domain.Session, text string) Reply {
	products := e.catalog.Mentioned(text)
	if len(products) == 0 {
		products = e.searchProducts(text, s.Answers)
	}
	if len(products) == 0 {
		e.recordFallback(ctx, "no_product", s.CurrentStep)
		return Reply{Text: validation.EnsureClosing(notFound(e.cfg.ShopURL)), Fallback: true}
	}
	if len(products) > 3 {
		products = products[:3]
	}

	card := productCards(products)
	reply := card
	explanation, err := e.complete(ctx, e.request(s, productDirective,
		productsContext("Prodotti richiesti", products),
		answersContext(s.Answers),
	))
	if err == nil && explanation != "" {
		combined := joinParts(card, explanation)
		if issues := e.repairer.Validator().Validate(combined); !validation.Blocking(issues) {
			reply = combined
		} else {
			e.logger.Info("product explanation dropped", "session_id", s.ID, "issues", len(issues))
		}
	}
	return Reply{Text: validation.EnsureClosing(reply)}
}

// searchProducts answers "looking for a product for X" requests: by
// category when one is named, otherwise by problem relevance.
func (e *Engine) searchProducts(text string, a domain.Answers) []domain.ProductRecord {
	ranked := e.catalog.ScoreByProblem([]string{text, a.MainIssue}, a.SkinType)
	if category := catalog.CategoryFor(text); category != "" {
		var out []domain.ProductRecord
		seen := make(map[string]bool)
		for _, r := range ranked {
			if strings.EqualFold(r.Product.Category, category) {
				out = append(out, r.Product)
				seen[r.Product.Name] = true
			}
		}
		for _, p := range e.catalog.ByCategory(category) {
			if !seen[p.Name] {
				out = append(out, p)
			}
		}
		return out
	}
	var out []domain.ProductRecord
	for _, r := range ranked {
		if r.Product.Category == catalog.CategoryKit {
			continue
		}
		out = append(out, r.Product)
	}
	return out
}

func (e *Engine) continuation(ctx context.Context, s *domain.Session, text string) Reply {
	snippets := e.retrieve(ctx, joinParts(text, s.Answers.MainIssue))
	var related []domain.ProductRecord
	for _, r := range e.ranked(s.Answers) {
		if len(related) == 5 {
			break
		}
		related = append(related, r.Product)
	}

	draft, _ := e.complete(ctx, e.request(s, continueDirective,
		answersContext(s.Answers),
		productsContext("Prodotti pertinenti", related),
		snippetsContext(snippets),
	))
	if q := AskedQuestion(draft); q != nil && q.Filled(&s.Answers) {
		draft = ""
	}
	out := e.repairer.Repair(ctx, draft, func() string {
		return continuationFallback(s, e.cfg.ShopURL)
	})
	if out.Fallback {
		e.recordFallback(ctx, "continuation", s.CurrentStep)
	}

	// A reply that asks an open questionnaire question becomes that question
	// step, with its choices attached.
	if s.CurrentStep != domain.StepCompleted {
		if q := AskedQuestion(out.Text); q != nil && !q.Filled(&s.Answers) {
			s.StructuredFlowActive = true
			s.CurrentStep = q.Step
			return Reply{Text: out.Text, Choices: ChoicesFor(q.Step), Fallback: out.Fallback}
		}
	}
	return Reply{Text: validation.EnsureClosing(out.Text), Fallback: out.Fallback}
}

func (e *Engine) retrieve(ctx context.Context, query string) []retrieval.Snippet {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	snippets, err := e.retriever.Search(ctx, query, e.cfg.RetrievalTopK)
	if err != nil {
		e.logger.Warn("retrieval failed", "error", err)
		return nil
	}
	return snippets
}

func (e *Engine) request(s *domain.Session, directive string, sections ...string) llm.Request {
	system := joinParts(append([]string{personaDirective, directive}, sections...)...)

	turns := s.RecentTurns(e.cfg.HistoryTurns)
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		m := llm.Message{Speaker: llm.SpeakerUser, Text: t.Text}
		if t.Speaker == domain.SpeakerModel {
			m.Speaker = llm.SpeakerModel
		}
		if t.Image != nil {
			m.Image = &llm.InlineImage{MimeType: t.Image.MimeType, Base64: t.Image.Base64}
		}
		msgs = append(msgs, m)
	}
	return llm.Request{
		System:          system,
		Messages:        msgs,
		Temperature:     e.cfg.Temperature,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
	}
}

// complete calls the model. Empty output is returned as "" with a nil error.
func (e *Engine) complete(ctx context.Context, req llm.Request) (string, error) {
	out, err := e.completer.Complete(ctx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		outcome = "unavailable"
	case err != nil:
		outcome = "error"
		e.logger.Warn("completion failed", "error", err)
	case strings.TrimSpace(out) == "":
		outcome = "empty"
	}
	e.metrics.Inc(ctx, metrics.LLMCalls, map[string]string{"outcome": outcome}, 1)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Engine) recordFallback(ctx context.Context, reason string, step domain.Step) {
	e.metrics.Inc(ctx, metrics.Fallbacks, map[string]string{"reason": reason, "step": string(step)}, 1)
}
