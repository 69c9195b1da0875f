package urgency

import (
	"strings"
	"testing"
)

func TestDictionaryInvariants(t *testing.T) {
	seen := make(map[string]Tier)
	for _, k := range Dictionary() {
		if k.Phrase != strings.ToLower(k.Phrase) {
			t.Errorf("%q: phrase not lowercase", k.Phrase)
		}
		if k.Weight < 0 || k.Weight > 100 {
			t.Errorf("%q: weight %d out of range", k.Phrase, k.Weight)
		}
		if tier, dup := seen[k.Phrase]; dup {
			t.Errorf("%q: listed twice (%s and %s)", k.Phrase, tier, k.Tier)
		}
		seen[k.Phrase] = k.Tier

		switch k.Tier {
		case TierRed, TierYellow, TierGreen:
		default:
			t.Errorf("%q: unexpected tier %q", k.Phrase, k.Tier)
		}
		if k.Category == CategoryUnknown {
			t.Errorf("%q: keyword must not map to unknown", k.Phrase)
		}
	}
	if len(seen) != len(redKeywords)+len(yellowKeywords)+len(greenKeywords) {
		t.Errorf("got %d keywords, want %d", len(seen), len(redKeywords)+len(yellowKeywords)+len(greenKeywords))
	}
}

func TestDictionaryOrder(t *testing.T) {
	rank := map[Tier]int{TierRed: 0, TierYellow: 1, TierGreen: 2}
	prev := 0
	for _, k := range Dictionary() {
		if rank[k.Tier] < prev {
			t.Fatalf("%q (%s) listed after a lower tier", k.Phrase, k.Tier)
		}
		prev = rank[k.Tier]
	}
}

func TestDictionaryReturnsCopy(t *testing.T) {
	d := Dictionary()
	d[0].Weight = -1
	if Dictionary()[0].Weight == -1 {
		t.Error("Dictionary exposed its backing array")
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		phrase string
		tier   Tier
		weight int
		ok     bool
	}{
		{"Pfändung", TierRed, 90, true},
		{"zwangsräumung", TierRed, 100, true},
		{"Letzte Mahnung", TierRed, 85, true},
		{"mahnung", TierYellow, 60, true},
		{"Rechnung", TierGreen, 30, true},
		{"Urlaub", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			k, ok := Lookup(tt.phrase)
			if ok != tt.ok {
				t.Fatalf("got ok=%v, want %v", ok, tt.ok)
			}
			if k.Tier != tt.tier || k.Weight != tt.weight {
				t.Errorf("got %s/%d, want %s/%d", k.Tier, k.Weight, tt.tier, tt.weight)
			}
		})
	}
}

func TestKeywordFindCaseInsensitive(t *testing.T) {
	k, _ := Lookup("pfändung")
	got := k.find("PFÄNDUNG, Pfändung und Kontopfändung")
	if len(got) != 3 {
		t.Errorf("got %d occurrences, want 3", len(got))
	}
}

func TestKeywordOutsideDictionary(t *testing.T) {
	k := Keyword{Phrase: "sperrung", Category: CategoryEnforcement, Tier: TierRed, Weight: 80}
	if got := len(k.find("Die Sperrung erfolgt morgen.")); got != 1 {
		t.Errorf("got %d occurrences, want 1", got)
	}
	if k.FirstWord() != "sperrung" || k.WordCount() != 1 {
		t.Errorf("got %q/%d", k.FirstWord(), k.WordCount())
	}
}
