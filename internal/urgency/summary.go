package urgency

import "fmt"

var categoryLabels = map[Category]string{
	CategoryEnforcement:     "Vollstreckung / Pfändung",
	CategoryFinalNotice:     "Letzte Mahnung / Fristsetzung",
	CategoryPaymentReminder: "Zahlungserinnerung / Mahnung",
	CategoryInformational:   "Information / Mitteilung",
	CategoryUnknown:         "Nicht erkannt",
}

var recommendations = map[Category][]string{
	CategoryEnforcement: {
		"Reagieren Sie sofort, Fristen bei Vollstreckungsmaßnahmen sind kurz.",
		"Wenden Sie sich an eine Schuldnerberatung oder einen Rechtsbeistand.",
		"Prüfen Sie, ob ein Pfändungsschutzkonto (P-Konto) eingerichtet ist.",
		"Bewahren Sie das Schreiben und alle Zustellnachweise auf.",
	},
	CategoryFinalNotice: {
		"Prüfen Sie die Forderung auf Richtigkeit.",
		"Zahlen Sie fristgerecht oder vereinbaren Sie eine Ratenzahlung.",
		"Widersprechen Sie schriftlich, wenn die Forderung unberechtigt ist.",
		"Notieren Sie sich die genannte Frist.",
	},
	CategoryPaymentReminder: {
		"Gleichen Sie den offenen Betrag zeitnah aus.",
		"Vergleichen Sie die Forderung mit Ihren Kontoauszügen.",
		"Melden Sie sich beim Absender, wenn Sie bereits gezahlt haben.",
	},
	CategoryInformational: {
		"Lesen Sie das Schreiben in Ruhe und legen Sie es ab.",
		"Prüfen Sie, ob darin doch eine Frist genannt ist.",
	},
	CategoryUnknown: {
		"Lesen Sie das Schreiben vollständig durch.",
		"Fragen Sie im Zweifel beim Absender oder einer Beratungsstelle nach.",
	},
}

// CategoryLabel returns the German display label of a category.
func CategoryLabel(c Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryUnknown]
}

// Recommendations returns a copy of the advice list for a category.
func Recommendations(c Category) []string {
	recs, ok := recommendations[c]
	if !ok {
		recs = recommendations[CategoryUnknown]
	}
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}

func summaryText(tier Tier, c Category) string {
	if c == CategoryUnknown {
		return "Es wurden keine bekannten Dringlichkeitsmerkmale gefunden. Bitte prüfen Sie das Schreiben selbst."
	}
	label := CategoryLabel(c)
	switch tier {
	case TierRed:
		return fmt.Sprintf("Sehr dringend: Das Schreiben betrifft %s. Handeln Sie umgehend.", label)
	case TierYellow:
		return fmt.Sprintf("Dringend: Das Schreiben betrifft %s. Reagieren Sie innerhalb der genannten Frist.", label)
	default:
		if c == CategoryInformational {
			return "Nicht dringend: Das Schreiben ist überwiegend informativ, es besteht kein akuter Handlungsbedarf."
		}
		return fmt.Sprintf("Nicht dringend: Das Schreiben betrifft %s, es ist derzeit keine Eile geboten.", label)
	}
}
