package urgency

import (
	"reflect"
	"strings"
	"testing"
)

var corpus = []string{
	"",
	"Die Zwangsvollstreckung wurde aufgehoben.",
	"Es droht eine Pfändung Ihres Kontos. Reagieren Sie innerhalb von 3 Tagen.",
	"Betreff: Haftbefehl\n\nDies ist eine Aktennotiz zur Verfahrenskoordination, kein Handlungsbedarf.",
	"Die Kontopfändung wird nicht eingeleitet.",
	"Betreff: Mahnung\n\nDie Mahnung über 50 Euro ist offen. Falls Sie bereits gezahlt haben, ist diese Mahnung erledigt.",
	"Stadtwerke Musterstadt\nBetr.: Letzte Mahnung vor Stromsperre\n\nTrotz Zahlungserinnerung ist die Rechnung offen, jedoch wird keine Stromsperre verhängt.\n\nMit freundlichen Grüßen",
	"Die Mahnung vom Mai wurde zurückgenommen. Die Mahnung vom Juni bleibt bestehen.",
	"MAHNUNG! Zwangsräumung angedroht; Gerichtsvollzieher beauftragt.",
}

type matchKey struct {
	keyword     string
	tier        Tier
	neutralized bool
}

func TestHighlightMatchesCollector(t *testing.T) {
	for _, text := range corpus {
		want := make(map[matchKey]int)
		for _, m := range CollectMatches(text) {
			want[matchKey{m.Keyword, m.Tier, m.Neutralized}]++
		}
		got := make(map[matchKey]int)
		for _, s := range Highlight(text).Spans {
			got[matchKey{s.Keyword, s.Tier, s.Neutralized}]++
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%q:\nhighlight %v\ncollector %v", text, got, want)
		}
	}
}

func TestHighlightOffsets(t *testing.T) {
	for _, text := range corpus {
		h := Highlight(text)
		for i, s := range h.Spans {
			if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
				t.Fatalf("%q: span %d out of bounds [%d,%d)", text, i, s.Start, s.End)
			}
			if !strings.EqualFold(text[s.Start:s.End], s.Keyword) {
				t.Errorf("%q: span [%d,%d) is %q, want %q", text, s.Start, s.End, text[s.Start:s.End], s.Keyword)
			}
			if i > 0 && h.Spans[i-1].Start > s.Start {
				t.Errorf("%q: spans not sorted", text)
			}
		}
	}
}

func TestHighlightCounts(t *testing.T) {
	for _, text := range corpus {
		h := Highlight(text)
		var want TierCounts
		neutralized := 0
		for _, m := range CollectMatches(text) {
			if m.Neutralized {
				neutralized++
				continue
			}
			switch m.Tier {
			case TierRed:
				want.Red++
			case TierYellow:
				want.Yellow++
			case TierGreen:
				want.Green++
			}
		}
		if h.ActiveCounts != want || h.NeutralizedCount != neutralized {
			t.Errorf("%q: got %+v/%d, want %+v/%d", text, h.ActiveCounts, h.NeutralizedCount, want, neutralized)
		}
	}
}

func TestHighlightNestedKeywords(t *testing.T) {
	text := "Die Zwangsvollstreckung wurde aufgehoben."
	h := Highlight(text)
	if len(h.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(h.Spans))
	}
	outer, inner := h.Spans[0], h.Spans[1]
	if outer.Keyword != "zwangsvollstreckung" || inner.Keyword != "vollstreckung" {
		t.Errorf("got %s then %s", outer.Keyword, inner.Keyword)
	}
	if outer.End != inner.End || inner.Start <= outer.Start {
		t.Errorf("got [%d,%d) and [%d,%d)", outer.Start, outer.End, inner.Start, inner.End)
	}
	if h.NeutralizedCount != 2 {
		t.Errorf("neutralized: got %d, want 2", h.NeutralizedCount)
	}
}

func TestHighlightSubjectOffsets(t *testing.T) {
	text := "Betreff: Mahnung\n\nDie Mahnung über 50 Euro ist offen."
	h := Highlight(text)
	if len(h.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(h.Spans))
	}
	if h.Spans[0].Start != 9 || h.Spans[1].Start != 22 {
		t.Errorf("got starts %d and %d, want 9 and 22", h.Spans[0].Start, h.Spans[1].Start)
	}
	if h.Spans[0].SentenceContext != "Mahnung" {
		t.Errorf("subject context: got %q", h.Spans[0].SentenceContext)
	}
}

func TestCollectMatchesPerOccurrence(t *testing.T) {
	got := CollectMatches("Die Mahnung vom Mai wurde zurückgenommen. Die Mahnung vom Juni bleibt bestehen.")
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if !got[0].Neutralized || got[1].Neutralized {
		t.Errorf("got neutralized %v then %v", got[0].Neutralized, got[1].Neutralized)
	}
	if got[1].EffectiveWeight != 60 {
		t.Errorf("second mahnung: got %d, want 60", got[1].EffectiveWeight)
	}
}

func TestCollectMatchesSubjectFirst(t *testing.T) {
	got := CollectMatches("Betreff: Mahnung\n\nDie Mahnung über 50 Euro ist offen.")
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if !got[0].FromSubject || got[1].FromSubject {
		t.Errorf("got FromSubject %v then %v", got[0].FromSubject, got[1].FromSubject)
	}
}
