package urgency

import (
	"regexp"
	"strings"
)

// Category is the kind of action a letter announces.
type Category string

const (
	CategoryEnforcement     Category = "enforcement"      // Seizure, eviction, warrant
	CategoryFinalNotice     Category = "final_notice"     // Last warning before court or collection
	CategoryPaymentReminder Category = "payment_reminder" // Dunning and reminders
	CategoryInformational   Category = "informational"    // Notices without required action
	CategoryUnknown         Category = "unknown"          // Nothing recognised
)

// Categories lists every category in tie-break order.
var Categories = []Category{
	CategoryEnforcement,
	CategoryFinalNotice,
	CategoryPaymentReminder,
	CategoryInformational,
	CategoryUnknown,
}

// Tier is the traffic-light classification used both for keywords and for letters.
type Tier string

const (
	TierRed    Tier = "red"
	TierYellow Tier = "yellow"
	TierGreen  Tier = "green"
)

// Keyword is a static dictionary entry.
type Keyword struct {
	Phrase   string   `json:"keyword"`
	Category Category `json:"category"`
	Tier     Tier     `json:"tier"`
	Weight   int      `json:"weight"`

	matcher *regexp.Regexp
}

// FirstWord returns the first whitespace-separated word of the phrase.
func (k Keyword) FirstWord() string {
	if i := strings.IndexAny(k.Phrase, " \t"); i >= 0 {
		return k.Phrase[:i]
	}
	return k.Phrase
}

// WordCount returns the number of whitespace-separated words in the phrase.
func (k Keyword) WordCount() int {
	return len(strings.Fields(k.Phrase))
}

// pattern returns the case-insensitive matcher for the phrase. Keywords built
// outside the dictionary get theirs compiled on demand.
func (k Keyword) pattern() *regexp.Regexp {
	if k.matcher != nil {
		return k.matcher
	}
	return compilePhrase(k.Phrase)
}

// find returns the byte ranges of all non-overlapping case-insensitive occurrences in s.
func (k Keyword) find(s string) [][]int {
	return k.pattern().FindAllStringIndex(s, -1)
}

func compilePhrase(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase))
}

// Within a tier the weight orders severity.
var (
	redKeywords = []Keyword{
		{Phrase: "zwangsräumung", Category: CategoryEnforcement, Weight: 100},
		{Phrase: "haftbefehl", Category: CategoryEnforcement, Weight: 100},
		{Phrase: "erzwingungshaft", Category: CategoryEnforcement, Weight: 100},
		{Phrase: "zwangsvollstreckung", Category: CategoryEnforcement, Weight: 95},
		{Phrase: "vollstreckungsbescheid", Category: CategoryEnforcement, Weight: 95},
		{Phrase: "kontopfändung", Category: CategoryEnforcement, Weight: 95},
		{Phrase: "pfändungs- und überweisungsbeschluss", Category: CategoryEnforcement, Weight: 95},
		{Phrase: "pfändung", Category: CategoryEnforcement, Weight: 90},
		{Phrase: "gerichtsvollzieher", Category: CategoryEnforcement, Weight: 90},
		{Phrase: "vermögensauskunft", Category: CategoryEnforcement, Weight: 90},
		{Phrase: "räumungsklage", Category: CategoryEnforcement, Weight: 90},
		{Phrase: "vollstreckung", Category: CategoryEnforcement, Weight: 85},
		{Phrase: "zwangsgeld", Category: CategoryEnforcement, Weight: 85},
		{Phrase: "stromsperre", Category: CategoryEnforcement, Weight: 85},
		{Phrase: "letzte mahnung", Category: CategoryFinalNotice, Weight: 85},
		{Phrase: "mahnbescheid", Category: CategoryFinalNotice, Weight: 85},
		{Phrase: "androhung", Category: CategoryFinalNotice, Weight: 80},
	}

	yellowKeywords = []Keyword{
		{Phrase: "inkasso", Category: CategoryFinalNotice, Weight: 70},
		{Phrase: "kündigung", Category: CategoryFinalNotice, Weight: 70},
		{Phrase: "fristsetzung", Category: CategoryFinalNotice, Weight: 65},
		{Phrase: "zahlungsaufforderung", Category: CategoryPaymentReminder, Weight: 65},
		{Phrase: "mahnung", Category: CategoryPaymentReminder, Weight: 60},
		{Phrase: "säumniszuschlag", Category: CategoryPaymentReminder, Weight: 60},
		{Phrase: "zahlungsrückstand", Category: CategoryPaymentReminder, Weight: 60},
		{Phrase: "mahngebühr", Category: CategoryPaymentReminder, Weight: 55},
		{Phrase: "offene forderung", Category: CategoryPaymentReminder, Weight: 55},
		{Phrase: "zahlungserinnerung", Category: CategoryPaymentReminder, Weight: 50},
		{Phrase: "verzugszinsen", Category: CategoryPaymentReminder, Weight: 50},
	}

	greenKeywords = []Keyword{
		{Phrase: "rechnung", Category: CategoryPaymentReminder, Weight: 30},
		{Phrase: "bescheid", Category: CategoryInformational, Weight: 25},
		{Phrase: "vertragsänderung", Category: CategoryInformational, Weight: 20},
		{Phrase: "bestätigung", Category: CategoryInformational, Weight: 15},
		{Phrase: "bescheinigung", Category: CategoryInformational, Weight: 15},
		{Phrase: "kontoauszug", Category: CategoryInformational, Weight: 10},
	}

	dictionary = buildDictionary()
	byPhrase   = indexDictionary(dictionary)
)

func buildDictionary() []Keyword {
	all := make([]Keyword, 0, len(redKeywords)+len(yellowKeywords)+len(greenKeywords))
	for _, set := range []struct {
		tier     Tier
		keywords []Keyword
	}{
		{TierRed, redKeywords},
		{TierYellow, yellowKeywords},
		{TierGreen, greenKeywords},
	} {
		for _, k := range set.keywords {
			k.Tier = set.tier
			k.matcher = compilePhrase(k.Phrase)
			all = append(all, k)
		}
	}
	return all
}

func indexDictionary(keywords []Keyword) map[string]Keyword {
	m := make(map[string]Keyword, len(keywords))
	for _, k := range keywords {
		m[k.Phrase] = k
	}
	return m
}

// Dictionary returns a copy of the keyword table: red, then yellow, then green.
func Dictionary() []Keyword {
	out := make([]Keyword, len(dictionary))
	copy(out, dictionary)
	return out
}

// Lookup returns the dictionary entry for a phrase.
func Lookup(phrase string) (Keyword, bool) {
	k, ok := byPhrase[strings.ToLower(phrase)]
	return k, ok
}
