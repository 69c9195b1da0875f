// Package extract pulls structured fields out of a normalized letter.
package extract

import (
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fields are the structured facts found in a letter. Only DeadlineDays feeds
// the urgency score; the rest is shown to the reader.
type Fields struct {
	Dates        []Date      `json:"dates"`
	Amounts      []Amount    `json:"amounts"`
	IBANs        []string    `json:"ibans"`
	References   []Reference `json:"references"`
	DeadlineDays *int        `json:"deadline_days,omitempty"`
}

// Date is a calendar date mentioned in the text.
type Date struct {
	Raw        string    `json:"raw"`
	Value      time.Time `json:"value"`
	IsDeadline bool      `json:"is_deadline"`

	offset int
}

// Amount is a euro amount in cents.
type Amount struct {
	Raw   string `json:"raw"`
	Cents int64  `json:"cents"`
}

// Reference is a labelled file or account number.
type Reference struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var months = map[string]time.Month{
	"januar": time.January, "jänner": time.January, "februar": time.February,
	"märz": time.March, "april": time.April, "mai": time.May, "juni": time.June,
	"juli": time.July, "august": time.August, "september": time.September,
	"oktober": time.October, "november": time.November, "dezember": time.December,
}

var numberWords = map[string]int{
	"einem": 1, "einer": 1, "ein": 1, "eine": 1,
	"zwei": 2, "drei": 3, "vier": 4, "fünf": 5, "sechs": 6, "sieben": 7,
	"acht": 8, "neun": 9, "zehn": 10, "elf": 11, "zwölf": 12, "vierzehn": 14,
}

var (
	numericDate = regexp.MustCompile(`\b(\d{1,2})\.\s?(\d{1,2})\.\s?(\d{4}|\d{2})\b`)
	writtenDate = regexp.MustCompile(`(?i)\b(\d{1,2})\.\s?(januar|jänner|februar|märz|april|mai|juni|juli|august|september|oktober|november|dezember)\s+(\d{4})`)

	// A deadline phrase right before a date marks that date as a deadline.
	deadlineLead = regexp.MustCompile(`(?i)\b(?:bis\s+(?:zum|spätestens)?|spätestens\s+(?:am|zum|bis)?|frist\w*\s+(?:bis|endet\s+am|zum)?|fällig\s+(?:am|zum|bis)?|zahlbar\s+bis)\s*$`)

	relativeDeadline = regexp.MustCompile(`(?i)\b(?:innerhalb|binnen)\s+(?:von\s+)?(\d{1,3}|einem|einer|ein|eine|zwei|drei|vier|fünf|sechs|sieben|acht|neun|zehn|elf|zwölf|vierzehn)\s+(tag|tage|tagen|woche|wochen|monat|monaten)\b`)

	amountEUR = regexp.MustCompile(`(?i)(?:(?:€|eur)\s?(\d{1,3}(?:\.\d{3})*(?:,\d{2})?|\d+(?:,\d{2})?))|(?:(\d{1,3}(?:\.\d{3})*(?:,\d{2})?|\d+(?:,\d{2})?)\s?(?:€|eur(?:o)?\b))`)

	ibanCandidate = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){3,7}(?: ?[A-Z0-9]{1,3})?\b`)

	// Labels are case-insensitive, values are uppercase letters, digits and separators.
	referencePattern = regexp.MustCompile(`\b((?i:aktenzeichen|az\.|kassenzeichen|kundennummer|kunden-nr\.|rechnungsnummer|rechnungs-nr\.|vertragsnummer|mandatsreferenz|geschäftszeichen|steuernummer|unser zeichen))\s*:?\s*([A-Z0-9][A-Z0-9/.\-]*\b(?: [A-Z0-9][A-Z0-9/.\-]*\b){0,3})`)
)

// FromText extracts everything it recognizes. now anchors relative deadlines
// and is compared in calendar days.
func FromText(text string, now time.Time) Fields {
	f := Fields{
		Dates:      dates(text),
		Amounts:    amounts(text),
		IBANs:      ibans(text),
		References: references(text),
	}
	f.DeadlineDays = deadlineDays(text, f.Dates, now)
	return f
}

func dates(text string) []Date {
	var out []Date
	add := func(loc []int, day, month, year int) {
		y := year
		if y < 100 {
			y += 2000
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return
		}
		v := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if v.Day() != day {
			return
		}
		out = append(out, Date{
			Raw:        text[loc[0]:loc[1]],
			Value:      v,
			IsDeadline: deadlineLead.MatchString(text[max(0, loc[0]-40):loc[0]]),
			offset:     loc[0],
		})
	}

	for _, m := range numericDate.FindAllStringSubmatchIndex(text, -1) {
		add(m, atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]]))
	}
	for _, m := range writtenDate.FindAllStringSubmatchIndex(text, -1) {
		month := months[strings.ToLower(text[m[4]:m[5]])]
		add(m, atoi(text[m[2]:m[3]]), int(month), atoi(text[m[6]:m[7]]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

func amounts(text string) []Amount {
	var out []Amount
	for _, m := range amountEUR.FindAllStringSubmatchIndex(text, -1) {
		num := ""
		switch {
		case m[2] >= 0:
			num = text[m[2]:m[3]]
		case m[4] >= 0:
			num = text[m[4]:m[5]]
		}
		cents, ok := parseCents(num)
		if !ok {
			continue
		}
		out = append(out, Amount{Raw: strings.TrimSpace(text[m[0]:m[1]]), Cents: cents})
	}
	return out
}

// parseCents reads a German-formatted number ("1.234,56") as cents.
func parseCents(s string) (int64, bool) {
	s = strings.ReplaceAll(s, ".", "")
	whole, frac, hasFrac := strings.Cut(s, ",")
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	c := int64(0)
	if hasFrac {
		if c, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, false
		}
	}
	return w*100 + c, true
}

func ibans(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range ibanCandidate.FindAllString(strings.ToUpper(text), -1) {
		iban := strings.ReplaceAll(m, " ", "")
		if seen[iban] || !ValidIBAN(iban) {
			continue
		}
		seen[iban] = true
		out = append(out, iban)
	}
	return out
}

// ibanLengths covers the countries German letters usually name.
var ibanLengths = map[string]int{
	"DE": 22, "AT": 20, "CH": 21, "LI": 21, "LU": 20, "NL": 18, "BE": 16,
	"FR": 27, "IT": 27, "ES": 24, "PL": 28, "DK": 18, "CZ": 24,
}

// ValidIBAN checks length and the ISO 7064 mod-97 checksum of a compact IBAN.
func ValidIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	if n, ok := ibanLengths[iban[:2]]; ok && n != len(iban) {
		return false
	}

	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			digits.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func references(text string) []Reference {
	var out []Reference
	for _, m := range referencePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, Reference{
			Label: canonicalLabel(m[1]),
			Value: strings.TrimRight(m[2], ".-/"),
		})
	}
	return out
}

func canonicalLabel(label string) string {
	switch l := strings.ToLower(label); l {
	case "az.":
		return "Aktenzeichen"
	case "kunden-nr.":
		return "Kundennummer"
	case "rechnungs-nr.":
		return "Rechnungsnummer"
	case "unser zeichen":
		return "Unser Zeichen"
	default:
		return strings.ToUpper(l[:1]) + l[1:]
	}
}

// deadlineDays is the smallest number of calendar days until any deadline:
// relative phrases count from now, deadline dates against today. Past
// deadlines give negative values.
func deadlineDays(text string, found []Date, now time.Time) *int {
	best, ok := 0, false
	consider := func(d int) {
		if !ok || d < best {
			best, ok = d, true
		}
	}

	for _, m := range relativeDeadline.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = numberWords[strings.ToLower(m[1])]
		}
		switch strings.ToLower(m[2]) {
		case "woche", "wochen":
			n *= 7
		case "monat", "monaten":
			n *= 30
		}
		consider(n)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, d := range found {
		if d.IsDeadline {
			consider(int(d.Value.Sub(today).Hours() / 24))
		}
	}

	if !ok {
		return nil
	}
	return &best
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// DeadlineText describes a deadline in days for display. Nil yields "".
func DeadlineText(days *int) string {
	switch {
	case days == nil:
		return ""
	case *days < -1:
		return fmt.Sprintf("seit %d Tagen abgelaufen", -*days)
	case *days == -1:
		return "seit 1 Tag abgelaufen"
	case *days == 0:
		return "heute"
	case *days == 1:
		return "noch 1 Tag"
	}
	return fmt.Sprintf("noch %d Tage", *days)
}
