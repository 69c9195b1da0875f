package urgency

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single sentence",
			text: "Die Zwangsvollstreckung wurde aufgehoben.",
			want: []string{"Die Zwangsvollstreckung wurde aufgehoben."},
		},
		{
			name: "all delimiters",
			text: "Erster Satz. Zweiter Satz! Dritter? Vierter; fünfter",
			want: []string{"Erster Satz.", "Zweiter Satz!", "Dritter?", "Vierter;", "fünfter"},
		},
		{
			name: "contrastive conjunction starts a new unit",
			text: "Die Pfändung wurde aufgehoben, aber eine neue Pfändung wird eingeleitet.",
			want: []string{"Die Pfändung wurde aufgehoben,", "aber eine neue Pfändung wird eingeleitet."},
		},
		{
			name: "conjunction inside a word is ignored",
			text: "Der Inhaber des Kontos zahlt.",
			want: []string{"Der Inhaber des Kontos zahlt."},
		},
		{
			name: "capitalised conjunction after a full stop",
			text: "Die Frist ist verstrichen. Jedoch bleibt Zeit.",
			want: []string{"Die Frist ist verstrichen.", "Jedoch bleibt Zeit."},
		},
		{
			name: "blank line separates",
			text: "Zeile eins\n\nZeile zwei",
			want: []string{"Zeile eins", "Zeile zwei"},
		},
		{
			name: "single newline does not separate",
			text: "Zeile eins\nZeile zwei",
			want: []string{"Zeile eins\nZeile zwei"},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "  \n\n \t ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitSentencesIdempotent(t *testing.T) {
	inputs := []string{
		"  Kein Trennzeichen hier  ",
		"Es droht eine Pfändung Ihres Kontos",
		"Betrag 12,50 EUR",
	}
	for _, in := range inputs {
		first := SplitSentences(in)
		if len(first) != 1 {
			t.Fatalf("%q: got %d units, want 1", in, len(first))
		}
		again := SplitSentences(first[0])
		if !reflect.DeepEqual(again, first) {
			t.Errorf("%q: resplit got %q, want %q", in, again, first)
		}
	}
}

func TestSentencesRestartable(t *testing.T) {
	seq := Sentences("Eins. Zwei. Drei.")

	var first, second []string
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	if len(first) != 3 || !reflect.DeepEqual(first, second) {
		t.Errorf("got %q then %q", first, second)
	}
}

func TestSentencesEarlyStop(t *testing.T) {
	var got []string
	for s := range Sentences("Eins. Zwei. Drei.") {
		got = append(got, s)
		break
	}
	if len(got) != 1 || got[0] != "Eins." {
		t.Errorf("got %q", got)
	}
}

func TestUnitOffsets(t *testing.T) {
	text := "  Erste Mahnung. \n\n Die Pfändung wurde aufgehoben, jedoch folgt eine Stromsperre!  Ende"
	for u := range units(text) {
		if got := text[u.Offset : u.Offset+len(u.Text)]; got != u.Text {
			t.Errorf("offset %d: got %q, want %q", u.Offset, got, u.Text)
		}
	}
}
