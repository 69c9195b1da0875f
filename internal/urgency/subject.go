package urgency

import (
	"regexp"
	"strings"
)

// Subject markers in priority order. The first marker found anywhere wins.
var subjectMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^[ \t]*betreff[ \t]*:[ \t]*(.*)$`),
	regexp.MustCompile(`(?im)^[ \t]*betr\.[ \t]*:[ \t]*(.*)$`),
	regexp.MustCompile(`(?im)^[ \t]*bezug[ \t]*:[ \t]*(.*)$`),
}

// SubjectLine is a detected subject together with the letter body it heads.
type SubjectLine struct {
	Text   string // subject without the marker
	Offset int    // byte offset of Text in the original letter
	Body   string // letter with the subject line removed

	lineStart, lineEnd int
}

// bodyOffset maps a byte offset in Body back to the original letter.
func (s SubjectLine) bodyOffset(o int) int {
	if o < s.lineStart {
		return o
	}
	return o + s.lineEnd - s.lineStart
}

// DetectSubject finds the subject line of a letter.
func DetectSubject(text string) (SubjectLine, bool) {
	for _, re := range subjectMarkers {
		m := re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		lineEnd := m[1]
		if lineEnd < len(text) && text[lineEnd] == '\n' {
			lineEnd++
		}

		raw := text[m[2]:m[3]]
		trimmed := strings.TrimLeft(raw, " \t")
		offset := m[2] + len(raw) - len(trimmed)

		return SubjectLine{
			Text:      strings.TrimRight(trimmed, " \t\r"),
			Offset:    offset,
			Body:      text[:m[0]] + text[lineEnd:],
			lineStart: m[0],
			lineEnd:   lineEnd,
		}, true
	}
	return SubjectLine{}, false
}

const subjectPrefix = "Betreff: "

// EvaluateSubject judges a keyword found in the subject line against the body
// of the letter. A subject has no sentence context of its own, so the body
// decides whether the keyword is negated, cancelled or merely mentioned.
func EvaluateSubject(kw Keyword, subject, body string) EvaluatedKeyword {
	loc := kw.pattern().FindStringIndex(subject)
	if loc == nil {
		loc = []int{-1, -1}
	}
	return evaluateSubjectAt(kw, subject, loc[0], loc[1], body)
}

func evaluateSubjectAt(kw Keyword, subject string, start, end int, body string) EvaluatedKeyword {
	ev := newEvaluation(kw)
	ev.FromSubject = true
	ev.Context = displayContext(subject, start, end)

	// Body sentences that repeat the keyword.
	var repeats []string
	for s := range Sentences(body) {
		if kw.pattern().MatchString(s) {
			repeats = append(repeats, strings.ToLower(s))
		}
	}

	if neg, ok := adjacentNegation(kw, body, repeats); ok {
		ev.EffectiveWeight = 0
		ev.Neutralized = true
		ev.Reason = subjectPrefix + "Neutralisiert, im Brieftext verneint (" + neg + ")"
		return ev
	}

	lowerBody := strings.ToLower(body)
	for _, rule := range subjectBodyRules {
		switch rule.Scope {
		case ScopeBody:
			if p, ok := rule.firstMatch(lowerBody); ok {
				return ev.apply(p, subjectPrefix)
			}
		default:
			for _, s := range repeats {
				if p, ok := rule.firstMatch(s); ok {
					return ev.apply(p, subjectPrefix)
				}
			}
		}
	}

	ev.Reason = subjectPrefix + "Aktiv: Brieftext enthält keinen abschwächenden Kontext"
	return ev
}

var adjacentNegator = regexp.MustCompile(`(?i)\b(` + adjacentNegators + `)\b`)

// adjacentNegation looks for a negator in a body sentence that repeats the
// keyword, or on either side of the keyword without an intervening full stop.
func adjacentNegation(kw Keyword, body string, repeats []string) (string, bool) {
	for _, s := range repeats {
		if m := adjacentNegator.FindStringSubmatch(s); m != nil {
			return strings.ToLower(m[1]), true
		}
	}

	q := regexp.QuoteMeta(kw.Phrase)
	directional := regexp.MustCompile(`(?i)` + q + `[^.]*?\b(` + adjacentNegators + `)\b|\b(` + adjacentNegators + `)\b[^.]*?` + q)
	if m := directional.FindStringSubmatch(body); m != nil {
		neg := m[1]
		if neg == "" {
			neg = m[2]
		}
		return strings.ToLower(neg), true
	}
	return "", false
}
