package notify

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/extract"
	"github.com/amtspost/amtspost/internal/urgency"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

var alertTemplate = template.Must(template.New("alert.tmpl").
	Funcs(template.FuncMap{"deadline": extract.DeadlineText}).
	ParseFS(embeddedTemplates, "templates/alert.tmpl"))

// AlertData is available to the alert template
type AlertData struct {
	Source          string
	Tier            urgency.Tier
	TierLabel       string
	Score           int
	CategoryLabel   string
	Summary         string
	Recommendations []string
	DeadlineDays    *int
	Keywords        []string
	Amounts         []extract.Amount
	References      []extract.Reference
	AnalyzedAt      string
	ID              string
}

// Alert is a rendered alert ready to send
type Alert struct {
	Subject string
	Body    string
}

var tierLabels = map[urgency.Tier]string{
	urgency.TierRed:    "ROT",
	urgency.TierYellow: "GELB",
	urgency.TierGreen:  "GRÜN",
}

// RenderAlert renders the alert e-mail for report.
func RenderAlert(report *analyzer.Report) (*Alert, error) {
	data := AlertData{
		Source:          report.Source,
		Tier:            report.Result.Tier,
		TierLabel:       tierLabels[report.Result.Tier],
		Score:           report.Result.Score,
		CategoryLabel:   report.Result.CategoryLabel,
		Summary:         report.Result.Summary,
		Recommendations: report.Result.Recommendations,
		DeadlineDays:    report.Fields.DeadlineDays,
		Amounts:         report.Fields.Amounts,
		References:      report.Fields.References,
		AnalyzedAt:      report.AnalyzedAt.Local().Format("02.01.2006 15:04"),
		ID:              report.ID,
	}
	seen := make(map[string]bool)
	for _, m := range report.Result.ActiveMatches() {
		if !seen[m.Keyword] {
			seen[m.Keyword] = true
			data.Keywords = append(data.Keywords, m.Keyword)
		}
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render alert: %w", err)
	}

	return &Alert{
		Subject: fmt.Sprintf("[Amtspost %s] %s (%d/100)", data.TierLabel, data.CategoryLabel, data.Score),
		Body:    buf.String(),
	}, nil
}
