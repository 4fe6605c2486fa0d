// Package catalogtest provides a product catalog fixture for tests.
package catalogtest

import (
	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/domain"
)

// Domain is the approved product domain used by the fixture.
const Domain = "https://www.dermalab.it"

// Records returns the fixture products.
func Records() []domain.ProductRecord {
	return []domain.ProductRecord{
		{
			Name:        "Azelaic Cleansing Gel",
			URL:         Domain + "/prodotto/azelaic-cleansing-gel/",
			Price:       "18,90 €",
			Category:    "cleanser",
			Description: "Gel detergente con acido azelaico e acido salicilico, azione purificante per pelli grasse e miste con acne.",
			Ingredients: []string{"acido azelaico", "acido salicilico"},
			Properties:  []string{"pelle grassa", "pelle mista"},
		},
		{
			Name:        "Latte Detergente Lenitivo",
			URL:         Domain + "/prodotto/latte-detergente-lenitivo/",
			Price:       "16,50 €",
			Category:    "cleanser",
			Description: "Latte struccante con centella e pantenolo, azione lenitiva per pelli sensibili e secche.",
			Ingredients: []string{"centella asiatica", "pantenolo"},
			Properties:  []string{"pelle sensibile", "pelle secca"},
		},
		{
			Name:        "Tonico Riequilibrante Niacinamide",
			URL:         Domain + "/prodotto/tonico-riequilibrante-niacinamide/",
			Price:       "15,90 €",
			Category:    "toner",
			Description: "Tonico con niacinamide per pori dilatati e lucidità, azione seboregolatrice.",
			Ingredients: []string{"niacinamide"},
			Properties:  []string{"pelle mista", "pelle grassa"},
		},
		{
			Name:        "Azelaic Serum 10%",
			URL:         Domain + "/prodotto/azelaic-serum-10/",
			Price:       "29,90 €",
			Category:    "serum",
			Description: "Siero con acido azelaico al 10% e niacinamide, indicato per acne, imperfezioni e rossori.",
			Ingredients: []string{"acido azelaico", "niacinamide"},
			Properties:  []string{"pelle mista", "pelle grassa"},
		},
		{
			Name:        "Vitamin C Brightening Serum",
			URL:         Domain + "/prodotto/vitamin-c-brightening-serum/",
			Price:       "32,00 €",
			Category:    "serum",
			Description: "Siero illuminante con vitamina C e acido tranexamico per macchie e discromie.",
			Ingredients: []string{"vitamina c", "acido tranexamico"},
			Properties:  []string{"pelle normale", "pelle mista"},
		},
		{
			Name:        "Retinal Night Serum",
			URL:         Domain + "/prodotto/retinal-night-serum/",
			Price:       "39,90 €",
			Category:    "serum",
			Description: "Siero notte antirughe con retinale e peptidi, migliora elasticità e linee sottili.",
			Ingredients: []string{"retinal", "peptidi"},
			Properties:  []string{"pelle secca", "pelle normale"},
		},
		{
			Name:        "Hyaluronic Booster",
			URL:         Domain + "/prodotto/hyaluronic-booster/",
			Price:       "24,90 €",
			Category:    "serum",
			Description: "Siero idratante con acido ialuronico a tre pesi molecolari contro la disidratazione.",
			Ingredients: []string{"acido ialuronico"},
			Properties:  []string{"pelle secca", "pelle asfittica"},
		},
		{
			Name:        "Centella Calming Cream",
			URL:         Domain + "/prodotto/centella-calming-cream/",
			Price:       "27,50 €",
			Category:    "moisturizer",
			Description: "Crema lenitiva con centella asiatica e pantenolo per pelli sensibili, reattive e con rossori.",
			Ingredients: []string{"centella asiatica", "pantenolo"},
			Properties:  []string{"pelle sensibile"},
		},
		{
			Name:        "Oil-Free Balancing Cream",
			URL:         Domain + "/prodotto/oil-free-balancing-cream/",
			Price:       "26,00 €",
			Category:    "moisturizer",
			Description: "Crema idratante oil-free con niacinamide e zinco per pelle grassa e mista con pori dilatati.",
			Ingredients: []string{"niacinamide", "zinco"},
			Properties:  []string{"pelle grassa", "pelle mista"},
		},
		{
			Name:        "Ceramide Rich Cream",
			URL:         Domain + "/prodotto/ceramide-rich-cream/",
			Price:       "28,90 €",
			Category:    "moisturizer",
			Description: "Crema nutriente con ceramidi e acido ialuronico per pelle secca e disidratata.",
			Ingredients: []string{"ceramidi", "acido ialuronico"},
			Properties:  []string{"pelle secca"},
		},
		{
			Name:        "M-Eye Secret",
			URL:         Domain + "/prodotto/m-eye-secret/",
			Price:       "34,90 €",
			Category:    "eye-care",
			Description: "Contorno occhi con caffeina e peptidi per occhiaie, borse e zampe di gallina.",
			Ingredients: []string{"caffeina", "peptidi"},
			Properties:  []string{"tutti i tipi di pelle"},
		},
		{
			Name:        "Invisible Shield SPF50",
			URL:         Domain + "/prodotto/invisible-shield-spf50/",
			Price:       "22,90 €",
			Category:    "sunscreen",
			Description: "Protezione solare viso SPF50 invisibile, texture leggera per uso quotidiano.",
			Properties:  []string{"tutti i tipi di pelle"},
		},
		{
			Name:        "Glycolic Renewal Peel",
			URL:         Domain + "/prodotto/glycolic-renewal-peel/",
			Price:       "25,90 €",
			Category:    "exfoliant",
			Description: "Esfoliante con acido glicolico per uniformare il tono e ridurre le macchie.",
			Ingredients: []string{"acido glicolico"},
			Properties:  []string{"pelle normale", "pelle asfittica"},
		},
		{
			Name:        "Clay Purifying Mask",
			URL:         Domain + "/prodotto/clay-purifying-mask/",
			Price:       "19,90 €",
			Category:    "mask",
			Description: "Maschera all'argilla purificante per pori dilatati e punti neri.",
			Ingredients: []string{"argilla", "zinco"},
			Properties:  []string{"pelle grassa"},
		},
		{
			Name:        "Routine Pelle Acne Tardiva",
			URL:         Domain + "/prodotto/routine-pelle-acne-tardiva/",
			Price:       "79,00 €",
			Category:    "kit",
			Description: "Kit completo per acne tardiva: detersione, trattamento azelaico e idratazione.",
		},
		{
			Name:        "Routine Pelle con Rosacea",
			URL:         Domain + "/prodotto/routine-pelle-rosacea/",
			Price:       "82,00 €",
			Category:    "kit",
			Description: "Kit per pelli con rosacea e couperose.",
		},
		{
			Name:        "Routine Anti-Macchie",
			URL:         Domain + "/prodotto/routine-anti-macchie/",
			Price:       "85,00 €",
			Category:    "kit",
			Description: "Kit per macchie e discromie.",
		},
		{
			Name:        "Routine Pelle Sensibile",
			URL:         Domain + "/prodotto/routine-pelle-sensibile/",
			Price:       "72,00 €",
			Category:    "kit",
			Description: "Kit per pelle sensibile e reattiva.",
		},
		{
			Name:        "Routine Prime Rughe",
			URL:         Domain + "/prodotto/routine-prime-rughe/",
			Price:       "88,00 €",
			Category:    "kit",
			Description: "Kit per le prime rughe su pelle mista.",
		},
		{
			Name:        "Routine Antirughe",
			URL:         Domain + "/prodotto/routine-antirughe/",
			Price:       "95,00 €",
			Category:    "kit",
			Description: "Kit antirughe per pelle secca.",
		},
		{
			Name:        "Routine Pelle Mista",
			URL:         Domain + "/prodotto/routine-pelle-mista/",
			Price:       "69,00 €",
			Category:    "kit",
			Description: "Kit base per pelle mista.",
		},
		{
			Name:        "Routine Pelle Grassa",
			URL:         Domain + "/prodotto/routine-pelle-grassa/",
			Price:       "69,00 €",
			Category:    "kit",
			Description: "Kit base per pelle grassa.",
		},
		{
			Name:        "Routine Pelle Secca",
			URL:         Domain + "/prodotto/routine-pelle-secca/",
			Price:       "69,00 €",
			Category:    "kit",
			Description: "Kit base per pelle secca.",
		},
	}
}

// Index returns an index over the fixture products.
func Index() *catalog.Index {
	return catalog.New(Records())
}
