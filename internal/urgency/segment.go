package urgency

import (
	"iter"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	// Contrastive conjunctions often reverse the context of the preceding clause,
	// so each starts a new unit. The leading whitespace keeps "Inhaber" intact.
	contrastBreak = regexp.MustCompile(`(?i)\s(aber|jedoch|allerdings|dennoch|trotzdem)\b`)

	sentenceBreak = regexp.MustCompile(`[.!?;]\s+|\n[ \t\r]*\n`)
)

// unit is one independently evaluable stretch of text. Offset is the byte
// position of Text within the text it was cut from.
type unit struct {
	Text   string
	Offset int
}

// Sentences splits text into trimmed, non-empty context units. The sequence is
// recomputed on every iteration.
func Sentences(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for u := range units(text) {
			if !yield(u.Text) {
				return
			}
		}
	}
}

// SplitSentences collects Sentences into a slice.
func SplitSentences(text string) []string {
	var out []string
	for s := range Sentences(text) {
		out = append(out, s)
	}
	return out
}

func units(text string) iter.Seq[unit] {
	return func(yield func(unit) bool) {
		start := 0
		for _, cut := range cutPoints(text) {
			if !yieldTrimmed(text, start, cut.end, yield) {
				return
			}
			start = cut.next
		}
		yieldTrimmed(text, start, len(text), yield)
	}
}

// cut ends a unit at end; the next unit starts at next.
type cut struct {
	end, next int
}

func cutPoints(text string) []cut {
	var cuts []cut
	for _, m := range sentenceBreak.FindAllStringIndex(text, -1) {
		// The delimiter character stays with its sentence.
		end := m[0]
		if text[m[0]] != '\n' {
			end++
		}
		cuts = append(cuts, cut{end: end, next: m[1]})
	}
	for _, m := range contrastBreak.FindAllStringSubmatchIndex(text, -1) {
		cuts = append(cuts, cut{end: m[2], next: m[2]})
	}
	sort.SliceStable(cuts, func(i, j int) bool { return cuts[i].end < cuts[j].end })

	// Drop cuts that would land inside whitespace another cut already consumed.
	out := cuts[:0]
	last := -1
	for _, c := range cuts {
		if c.end < last {
			continue
		}
		out = append(out, c)
		last = c.next
	}
	return out
}

func yieldTrimmed(text string, from, to int, yield func(unit) bool) bool {
	if from >= to {
		return true
	}
	seg := text[from:to]
	trimmed := strings.TrimLeftFunc(seg, unicode.IsSpace)
	offset := from + len(seg) - len(trimmed)
	trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	if trimmed == "" {
		return true
	}
	return yield(unit{Text: trimmed, Offset: offset})
}
