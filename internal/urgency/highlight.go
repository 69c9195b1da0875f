package urgency

import "sort"

// HighlightSpan is an evaluated keyword positioned in the original text.
// Start and End are byte offsets, End exclusive.
type HighlightSpan struct {
	Keyword         string   `json:"keyword"`
	Start           int      `json:"start"`
	End             int      `json:"end"`
	Tier            Tier     `json:"tier"`
	Category        Category `json:"category"`
	Neutralized     bool     `json:"is_neutralized"`
	Reason          string   `json:"reason"`
	OriginalWeight  int      `json:"weight"`
	EffectiveWeight int      `json:"effective_weight"`
	SentenceContext string   `json:"sentence_context"`
}

// TierCounts counts active spans per keyword tier.
type TierCounts struct {
	Red    int `json:"red"`
	Yellow int `json:"yellow"`
	Green  int `json:"green"`
}

// Highlights is the positional view of an analysis.
type Highlights struct {
	Spans            []HighlightSpan `json:"spans"`
	ActiveCounts     TierCounts      `json:"active_counts"`
	NeutralizedCount int             `json:"neutralized_count"`
}

// Highlight positions every evaluated keyword occurrence in text. It shares
// its evaluation with CollectMatches, so both agree on every verdict.
func Highlight(text string) Highlights {
	type key struct{ start, end int }
	seen := make(map[key]bool)

	h := Highlights{Spans: []HighlightSpan{}}
	for _, o := range evaluateText(text) {
		k := key{o.start, o.end}
		if seen[k] {
			continue
		}
		seen[k] = true

		h.Spans = append(h.Spans, HighlightSpan{
			Keyword:         o.eval.Keyword,
			Start:           o.start,
			End:             o.end,
			Tier:            o.eval.Tier,
			Category:        o.eval.Category,
			Neutralized:     o.eval.Neutralized,
			Reason:          o.eval.Reason,
			OriginalWeight:  o.eval.OriginalWeight,
			EffectiveWeight: o.eval.EffectiveWeight,
			SentenceContext: o.unit,
		})

		if o.eval.Neutralized {
			h.NeutralizedCount++
			continue
		}
		switch o.eval.Tier {
		case TierRed:
			h.ActiveCounts.Red++
		case TierYellow:
			h.ActiveCounts.Yellow++
		case TierGreen:
			h.ActiveCounts.Green++
		}
	}

	sort.SliceStable(h.Spans, func(i, j int) bool {
		if h.Spans[i].Start != h.Spans[j].Start {
			return h.Spans[i].Start < h.Spans[j].Start
		}
		return h.Spans[i].End > h.Spans[j].End
	})
	return h
}
