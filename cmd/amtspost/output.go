package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/extract"
	"github.com/amtspost/amtspost/internal/history"
	"github.com/amtspost/amtspost/internal/urgency"
)

var tierIcons = map[urgency.Tier]string{
	urgency.TierRed:    "🔴",
	urgency.TierYellow: "🟡",
	urgency.TierGreen:  "🟢",
}

var tierNames = map[urgency.Tier]string{
	urgency.TierRed:    "DRINGEND",
	urgency.TierYellow: "ZEITNAH",
	urgency.TierGreen:  "KEINE EILE",
}

func printReport(w io.Writer, report *analyzer.Report, verbose bool) {
	res := report.Result
	fmt.Fprintf(w, "%s %s · %d/100 · %s\n", tierIcons[res.Tier], tierNames[res.Tier], res.Score, res.CategoryLabel)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w, res.Summary)

	if d := extract.DeadlineText(report.Fields.DeadlineDays); d != "" {
		fmt.Fprintf(w, "⏰ Frist: %s\n", d)
	}
	for _, a := range report.Fields.Amounts {
		fmt.Fprintf(w, "💶 Betrag: %s\n", a.Raw)
	}
	for _, r := range report.Fields.References {
		fmt.Fprintf(w, "📎 %s: %s\n", r.Label, r.Value)
	}
	for _, iban := range report.Fields.IBANs {
		fmt.Fprintf(w, "🏦 IBAN: %s\n", iban)
	}

	matches := res.ActiveMatches()
	if verbose {
		matches = res.Matches
	}
	if len(matches) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Begriffe:")
		for _, m := range matches {
			mark := "●"
			if m.Neutralized {
				mark = "○"
			}
			subject := ""
			if m.FromSubject {
				subject = " [Betreff]"
			}
			fmt.Fprintf(w, "  %s %s%s (%s, %d/%d)", mark, m.Keyword, subject, m.Tier, m.EffectiveWeight, m.OriginalWeight)
			if verbose {
				fmt.Fprintf(w, " - %s", m.Reason)
			}
			fmt.Fprintln(w)
		}
	}

	if len(res.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Empfehlungen:")
		for _, r := range res.Recommendations {
			fmt.Fprintf(w, "  → %s\n", r)
		}
	}
}

// printHighlighted writes text with outer keyword spans bracketed as
// [[keyword|tier]], neutralized ones as [[keyword|~tier]].
func printHighlighted(w io.Writer, text string, h urgency.Highlights) {
	var b strings.Builder
	cursor := 0
	for _, sp := range h.Spans {
		if sp.Start < cursor || sp.End > len(text) {
			continue
		}
		b.WriteString(text[cursor:sp.Start])
		tier := string(sp.Tier)
		if sp.Neutralized {
			tier = "~" + tier
		}
		fmt.Fprintf(&b, "[[%s|%s]]", text[sp.Start:sp.End], tier)
		cursor = sp.End
	}
	b.WriteString(text[cursor:])

	fmt.Fprintln(w, b.String())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Aktiv: %d rot, %d gelb, %d grün · Neutralisiert: %d\n",
		h.ActiveCounts.Red, h.ActiveCounts.Yellow, h.ActiveCounts.Green, h.NeutralizedCount)
}

func printRecords(w io.Writer, records []history.Record) {
	for _, r := range records {
		fmt.Fprintf(w, "%s %s  %3d  %-28s %s  (%s)\n",
			tierIcons[r.Tier],
			r.AnalyzedAt.Local().Format("2006-01-02 15:04"),
			r.Score,
			r.CategoryLabel,
			r.Source,
			r.ID,
		)
	}
}

func printStats(w io.Writer, st history.Stats) {
	fmt.Fprintln(w, "📊 Amtspost Verlauf")
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "  Analysen gesamt: %d\n", st.Total)
	fmt.Fprintf(w, "  🔴 Dringend:     %d\n", st.Red)
	fmt.Fprintf(w, "  🟡 Zeitnah:      %d\n", st.Yellow)
	fmt.Fprintf(w, "  🟢 Keine Eile:   %d\n", st.Green)
}
