// Package normalize cleans OCR and text-layer artifacts before analysis.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Limits bounds the text accepted for analysis.
type Limits struct {
	MinChars int
	MaxChars int
}

// DefaultLimits rejects texts too short to carry a verdict and texts long
// enough to be something other than a letter.
var DefaultLimits = Limits{MinChars: 20, MaxChars: 200_000}

// Validation is the outcome of Validate.
type Validation struct {
	Valid   bool   `json:"is_valid"`
	Cleaned string `json:"cleaned_text"`
	Message string `json:"message,omitempty"`
}

const (
	MessageTooShort = "Text zu kurz für eine zuverlässige Analyse"
	MessageTooLong  = "Text zu lang für eine Analyse"
)

// Validate normalizes raw and checks it against limits.
func Validate(raw string, limits Limits) Validation {
	cleaned := Text(raw)
	n := utf8.RuneCountInString(cleaned)
	switch {
	case n < limits.MinChars:
		return Validation{Cleaned: cleaned, Message: MessageTooShort}
	case limits.MaxChars > 0 && n > limits.MaxChars:
		return Validation{Cleaned: cleaned, Message: MessageTooLong}
	}
	return Validation{Valid: true, Cleaned: cleaned}
}

var replacer = strings.NewReplacer(
	"\ufb00", "ff",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb03", "ffi",
	"\ufb04", "ffl",
	"\ufb06", "st",
	"\u00ad", "", // soft hyphen
	"\u200b", "", // zero-width space
	"\ufeff", "", // byte order mark
	"\u00a0", " ",
	"\u2009", " ",
	"\u202f", " ",
	"\r\n", "\n",
	"\r", "\n",
	"\u2013", "-",
	"\u2014", "-",
	"\u201e", "\"",
	"\u201c", "\"",
	"\u201d", "\"",
)

var (
	// "Zwangs-\nvollstreckung" → "Zwangsvollstreckung". A capital after the
	// break marks a real compound hyphen and is kept.
	hyphenBreak = regexp.MustCompile(`(\p{Ll})-[ \t]*\n[ \t]*(\p{Ll}+)`)

	// "P f ä n d u n g": four or more single letters separated by one space.
	letterSpaced = regexp.MustCompile(`(?:^|[^\p{L}])(\p{L}(?: \p{L}){3,})(?:[^\p{L}]|$)`)

	// Digits wedged between lowercase letters are almost always a misread o or l.
	zeroInWord = regexp.MustCompile(`(\p{Ll})0(\p{Ll})`)
	oneInWord  = regexp.MustCompile(`(\p{Ll})1(\p{Ll})`)

	// "12 ,50" and "12, 50" → "12,50".
	brokenDecimal = regexp.MustCompile(`(\d) ?, ?(\d{2})\b`)
	// "12,50€" → "12,50 €", "EUR12" → "EUR 12".
	currencyAfter  = regexp.MustCompile(`(\d)(€|EUR)`)
	currencyBefore = regexp.MustCompile(`(€|EUR)(\d)`)

	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	spaceAroundLine = regexp.MustCompile(` *\n *`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Text repairs common recognition artifacts.
func Text(raw string) string {
	s := norm.NFC.String(raw)
	s = replacer.Replace(s)
	s = strings.Map(dropControl, s)

	s = hyphenBreak.ReplaceAllStringFunc(s, rejoinHyphenated)
	s = joinLetterSpaced(s)
	s = replaceRepeated(zeroInWord, s, "${1}o${2}")
	s = replaceRepeated(oneInWord, s, "${1}l${2}")

	s = brokenDecimal.ReplaceAllString(s, "$1,$2")
	s = currencyAfter.ReplaceAllString(s, "$1 $2")
	s = currencyBefore.ReplaceAllString(s, "$1 $2")

	s = horizontalSpace.ReplaceAllString(s, " ")
	s = spaceAroundLine.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// rejoinHyphenated undoes a line-break hyphen unless the next word is a
// conjunction ("Pfändungs- und Überweisungsbeschluss").
func rejoinHyphenated(m string) string {
	sub := hyphenBreak.FindStringSubmatch(m)
	switch sub[2] {
	case "und", "oder", "bzw", "sowie":
		return m
	}
	return sub[1] + sub[2]
}

func joinLetterSpaced(s string) string {
	matches := letterSpaced.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[2]])
		b.WriteString(strings.ReplaceAll(s[m[2]:m[3]], " ", ""))
		last = m[3]
	}
	b.WriteString(s[last:])
	return b.String()
}

// replaceRepeated applies re until nothing changes, so overlapping hits like
// "v0ll0" are all fixed.
func replaceRepeated(re *regexp.Regexp, s, repl string) string {
	for {
		next := re.ReplaceAllString(s, repl)
		if next == s {
			return s
		}
		s = next
	}
}

func dropControl(r rune) rune {
	switch {
	case r == '\n' || r == '\t':
		return r
	case r < 0x20 || r == 0x7f:
		return -1
	}
	return r
}
