package urgency

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	windowRadius  = 5  // tokens on each side of the keyword
	displayRadius = 30 // characters on each side in the display context
)

// EvaluatedKeyword is the verdict for one keyword occurrence.
type EvaluatedKeyword struct {
	Keyword         string   `json:"keyword"`
	Category        Category `json:"category"`
	Tier            Tier     `json:"tier"`
	OriginalWeight  int      `json:"weight"`
	EffectiveWeight int      `json:"effective_weight"`
	Neutralized     bool     `json:"is_neutralized"`
	Reason          string   `json:"reason"`
	Context         string   `json:"context"`
	FromSubject     bool     `json:"from_subject,omitempty"`
}

// Active reports whether the occurrence still counts towards the score.
func (e EvaluatedKeyword) Active() bool { return !e.Neutralized }

func newEvaluation(kw Keyword) EvaluatedKeyword {
	return EvaluatedKeyword{
		Keyword:         kw.Phrase,
		Category:        kw.Category,
		Tier:            kw.Tier,
		OriginalWeight:  kw.Weight,
		EffectiveWeight: kw.Weight,
	}
}

// Evaluate judges the first occurrence of kw in sentence. If kw does not occur
// the rules run against the whole sentence.
func Evaluate(sentence string, kw Keyword) EvaluatedKeyword {
	if loc := kw.pattern().FindStringIndex(sentence); loc != nil {
		return evaluateAt(sentence, kw, loc[0], loc[1])
	}
	return evaluateAt(sentence, kw, -1, -1)
}

// evaluateAt judges the occurrence of kw at sentence[start:end].
func evaluateAt(sentence string, kw Keyword, start, end int) EvaluatedKeyword {
	ev := newEvaluation(kw)
	ev.Context = displayContext(sentence, start, end)

	lower := strings.ToLower(sentence)
	window := tokenWindow(sentence, kw, start)

	for _, rule := range sentenceRules {
		target := lower
		if rule.Scope == ScopeWindow {
			target = window
		}
		if p, ok := rule.firstMatch(target); ok {
			return ev.apply(p, "")
		}
	}
	ev.Reason = "Aktiv: kein abschwächender Kontext"
	return ev
}

// apply records the effect of a matched pattern.
func (e EvaluatedKeyword) apply(p Pattern, prefix string) EvaluatedKeyword {
	if p.Kind.Neutralizes() {
		e.EffectiveWeight = 0
		e.Neutralized = true
	} else {
		e.EffectiveWeight = reduce(e.OriginalWeight, p.Reduction)
	}
	e.Reason = prefix + reasonFor(p)
	return e
}

// reduce discounts weight by a mitigation. A positive weight never drops to
// zero; only negations do that.
func reduce(weight int, reduction float64) int {
	w := int(math.Round(float64(weight) * (1 - reduction)))
	if w < 1 && weight > 0 {
		w = 1
	}
	return w
}

func reasonFor(p Pattern) string {
	percent := int(math.Round(p.Reduction * 100))
	switch p.Kind {
	case KindStrongNegation:
		return fmt.Sprintf("Neutralisiert durch Verneinung %q", p.Name)
	case KindCancellation:
		return fmt.Sprintf("Neutralisiert: Maßnahme %s", p.Name)
	case KindRejection:
		return fmt.Sprintf("Neutralisiert durch Ablehnung %q", p.Name)
	case KindInformational:
		return fmt.Sprintf("Um %d%% abgeschwächt: informativer Kontext %q", percent, p.Name)
	case KindConditional:
		return fmt.Sprintf("Um %d%% abgeschwächt: bedingte Formulierung %q", percent, p.Name)
	case KindExclusion:
		return fmt.Sprintf("Um %d%% abgeschwächt: verwaltungsinterner Vorgang %q", percent, p.Name)
	default:
		return fmt.Sprintf("Kontext %q", p.Name)
	}
}

type token struct {
	text       string // lowercased
	start, end int    // byte range in the sentence
}

func tokenize(s string) []token {
	var toks []token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = append(toks, token{text: strings.ToLower(s[start:i]), start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, token{text: strings.ToLower(s[start:]), start: start, end: len(s)})
	}
	return toks
}

// tokenWindow joins the tokens within windowRadius of the keyword span. at is
// the byte offset of the occurrence or -1 when unknown.
func tokenWindow(sentence string, kw Keyword, at int) string {
	toks := tokenize(sentence)
	idx := -1
	if at >= 0 {
		for i, t := range toks {
			if at >= t.start && at < t.end {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		first := kw.FirstWord()
		for i, t := range toks {
			if strings.Contains(t.text, first) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return strings.ToLower(sentence)
	}

	from := max(0, idx-windowRadius)
	to := min(len(toks), idx+kw.WordCount()+windowRadius)
	words := make([]string, 0, to-from)
	for _, t := range toks[from:to] {
		words = append(words, t.text)
	}
	return strings.Join(words, " ")
}

// displayContext cuts displayRadius characters around sentence[start:end] for
// human review. It plays no part in rule decisions.
func displayContext(sentence string, start, end int) string {
	if start < 0 {
		return "..." + strings.TrimSpace(firstRunes(sentence, 2*displayRadius)) + "..."
	}
	before := lastRunes(sentence[:start], displayRadius)
	after := firstRunes(sentence[end:], displayRadius)
	return "..." + strings.TrimSpace(before+sentence[start:end]+after) + "..."
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func lastRunes(s string, n int) string {
	pos := len(s)
	for i := 0; i < n && pos > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:pos])
		pos -= size
	}
	return s[pos:]
}
