package dialogue

import (
	"fmt"
	"strings"

	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/retrieval"
)

const (
	flowIntro          = "Grazie per avermi raccontato della tua pelle! Per consigliarti al meglio ti farò qualche breve domanda."
	analysisUnreadable = "Ho ricevuto la tua analisi, ma non sono riuscita a leggerne i risultati. Nessun problema: ti faccio qualche domanda."
	repromptLead       = "Non sono sicura di aver capito la tua risposta."
	detailsPrompt      = "Certo! Scrivimi pure i dettagli che vuoi aggiungere sulla tua pelle, oppure premi \"" + additionalNo + "\"."
	welcomeBack        = "Eccomi di nuovo! Come posso aiutarti?"
)

func greetingText(userName, brand string) string {
	hello := "Ciao!"
	if name := strings.TrimSpace(userName); name != "" {
		hello = "Ciao " + name + "!"
	}
	return hello + " Sono l'assistente skincare di " + brand +
		". Raccontami della tua pelle e di cosa ti piacerebbe migliorare. Puoi anche chiedermi informazioni su un prodotto."
}

func analysisIntro(issue string) string {
	return fmt.Sprintf("Ho letto i risultati dell'analisi della tua foto: l'aspetto su cui lavorare di più sembra essere %s.", strings.ToLower(issue))
}

func notFound(shopURL string) string {
	return "Mi dispiace, non ho trovato un prodotto che corrisponda alla tua richiesta. Puoi dare un'occhiata a tutti i nostri prodotti qui: " + shopURL
}

func joinParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func productLink(p domain.ProductRecord) string {
	return fmt.Sprintf("[%s](%s)", p.Name, p.URL)
}

// productCard renders the deterministic answer to a product question.
func productCard(p domain.ProductRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", p.Name)
	if p.Price != "" {
		fmt.Fprintf(&b, ", prezzo: %s", p.Price)
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(p.Description)
	}
	b.WriteString("\nLink: ")
	b.WriteString(p.URL)
	return b.String()
}

func productCards(products []domain.ProductRecord) string {
	cards := make([]string, len(products))
	for i, p := range products {
		cards[i] = productCard(p)
	}
	return strings.Join(cards, "\n\n")
}

func describeSkin(a domain.Answers) string {
	var parts []string
	if a.SkinType != "" {
		parts = append(parts, "pelle "+strings.ToLower(a.SkinType))
	}
	if a.MainIssue != "" {
		parts = append(parts, "attenzione a "+strings.ToLower(a.MainIssue))
	}
	if len(parts) == 0 {
		return "la tua pelle"
	}
	return strings.Join(parts, ", ")
}

type routineLine struct {
	label    string
	category string
}

var (
	morningLines = []routineLine{
		{"Detersione", catalog.CategoryCleanser},
		{"Trattamento", catalog.CategorySerum},
		{"Idratazione", catalog.CategoryMoisturizer},
		{"Protezione", catalog.CategorySunscreen},
	}
	eveningLines = []routineLine{
		{"Detersione", catalog.CategoryCleanser},
		{"Trattamento", catalog.CategorySerum},
		{"Idratazione", catalog.CategoryMoisturizer},
	}
)

// routineTemplate builds the final recommendation from catalog data only.
func routineTemplate(idx *catalog.Index, a domain.Answers, ranked []catalog.Scored, bundle domain.Bundle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ecco la routine che ho preparato per te (%s).\n", describeSkin(a))

	section := func(title string, lines []routineLine) {
		var rows []string
		for _, l := range lines {
			if p := idx.BestInCategory(l.category, ranked); p != nil {
				rows = append(rows, fmt.Sprintf("- %s: %s", l.label, productLink(*p)))
			}
		}
		if len(rows) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n**%s**\n%s\n", title, strings.Join(rows, "\n"))
	}
	section("Routine del mattino", morningLines)
	section("Routine della sera", eveningLines)

	fmt.Fprintf(&b, "\n**Il kit consigliato per te:** %s\n%s", bundle.Name, bundle.URL)
	return b.String()
}

// specificTemplate recommends one product for a single-category request.
func specificTemplate(a domain.Answers, p domain.ProductRecord) string {
	text := fmt.Sprintf("Per %s ti consiglio %s", describeSkin(a), productLink(p))
	if p.Price != "" {
		text += " (" + p.Price + ")"
	}
	text += "."
	if p.Description != "" {
		text += "\n" + p.Description
	}
	return text
}

func continuationFallback(s *domain.Session, shopURL string) string {
	if s.CurrentStep == domain.StepCompleted {
		return "Grazie per il tuo messaggio! Posso darti informazioni su uno dei prodotti consigliati oppure aiutarti a usarli al meglio. Trovi tutti i nostri prodotti qui: " + shopURL
	}
	return "Raccontami qualcosa della tua pelle e di cosa ti piacerebbe migliorare, così posso aiutarti. Trovi tutti i nostri prodotti qui: " + shopURL
}

// System directives. Wording is kept short; the engine never relies on it
// for correctness.
const (
	personaDirective = "Sei una consulente skincare gentile e competente. Rispondi in italiano, in modo breve e caloroso. " +
		"Cita solo prodotti presenti nel catalogo fornito, con il loro nome esatto e il loro link esatto. Non inventare prodotti né link."
	questionDirective = "Formula in una o due frasi la prossima domanda del questionario, senza rispondere ad altro e senza elencare opzioni. Domanda da porre: "
	finalDirective    = "Prepara la routine completa personalizzata con una sezione \"Routine del mattino\" e una \"Routine della sera\". " +
		"Per ogni passaggio (detersione, trattamento, idratazione e, al mattino, protezione solare) indica un prodotto del catalogo con il suo link. " +
		"Concludi consigliando il kit indicato con il suo link."
	specificDirective = "Consiglia il prodotto indicato spiegando in poche frasi perché è adatto, con il suo nome esatto e il suo link."
	productDirective  = "L'utente chiede informazioni su un prodotto. La scheda con prezzo e link è già mostrata: aggiungi solo due o tre frasi su come usarlo e a chi è adatto."
	continueDirective = "Continua la conversazione rispondendo alla domanda dell'utente."
)

func answersContext(a domain.Answers) string {
	var rows []string
	add := func(label, v string) {
		if v != "" {
			rows = append(rows, "- "+label+": "+v)
		}
	}
	add("Tipo di pelle", a.SkinType)
	add("Età", a.Age)
	add("Problematica principale", a.MainIssue)
	add("Tipo di consiglio", a.AdviceType)
	add("Informazioni aggiuntive", a.AdditionalInfo)
	if len(a.SkinProblems) > 0 {
		add("Altre problematiche", strings.Join(a.SkinProblems, ", "))
	}
	if len(rows) == 0 {
		return ""
	}
	return "Profilo dell'utente:\n" + strings.Join(rows, "\n")
}

func productsContext(title string, products []domain.ProductRecord) string {
	if len(products) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n  %s\n", p.Name, p.Category, p.Price, p.URL, p.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func snippetsContext(snippets []retrieval.Snippet) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Informazioni utili dalla base di conoscenza:\n")
	for _, s := range snippets {
		fmt.Fprintf(&b, "[%s] %s\n", s.Source, s.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
