package extract

import (
	"reflect"
	"testing"
	"time"
)

var now = time.Date(2026, time.October, 15, 10, 30, 0, 0, time.UTC)

func TestDeadlineDays(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int
	}{
		{"relative days", "Reagieren Sie innerhalb von 3 Tagen.", ptr(3)},
		{"relative weeks in words", "Zahlen Sie binnen zwei Wochen.", ptr(14)},
		{"one week", "Bitte melden Sie sich innerhalb einer Woche.", ptr(7)},
		{"deadline date", "Zahlen Sie bis zum 20.10.2026.", ptr(5)},
		{"past deadline", "Die Frist endete spätestens am 10.10.2026.", ptr(-5)},
		{"written month", "Der Betrag ist zahlbar bis 1. November 2026.", ptr(17)},
		{"earliest wins", "Binnen zwei Wochen, spätestens jedoch bis zum 20.10.2026.", ptr(5)},
		{"plain date is no deadline", "Ihr Schreiben vom 01.10.2026 haben wir erhalten.", nil},
		{"nothing", "Vielen Dank für Ihre Zahlung.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromText(tt.text, now).DeadlineDays
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", deref(got), deref(tt.want))
			}
		})
	}
}

func TestDates(t *testing.T) {
	got := FromText("Vom 01.10.26, fällig am 15. März 2027, ungültig 31.02.2026.", now).Dates
	if len(got) != 2 {
		t.Fatalf("got %d dates, want 2: %+v", len(got), got)
	}
	if want := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC); !got[0].Value.Equal(want) || got[0].IsDeadline {
		t.Errorf("first: got %+v", got[0])
	}
	if want := time.Date(2027, time.March, 15, 0, 0, 0, 0, time.UTC); !got[1].Value.Equal(want) || !got[1].IsDeadline {
		t.Errorf("second: got %+v", got[1])
	}
}

func TestAmounts(t *testing.T) {
	tests := []struct {
		text  string
		cents int64
	}{
		{"Gesamtbetrag: 1.234,56 EUR", 123456},
		{"Mahngebühr 5,00 €", 500},
		{"EUR 80 sind offen", 8000},
		{"insgesamt 50 Euro", 5000},
		{"€12,50", 1250},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := FromText(tt.text, now).Amounts
			if len(got) != 1 || got[0].Cents != tt.cents {
				t.Errorf("got %+v, want %d cents", got, tt.cents)
			}
		})
	}
}

func TestIBANs(t *testing.T) {
	text := "Bitte überweisen Sie auf IBAN DE89 3704 0044 0532 0130 00. Nicht auf DE89 3704 0044 0532 0130 01."
	got := FromText(text, now).IBANs
	want := []string{"DE89370400440532013000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestValidIBAN(t *testing.T) {
	tests := []struct {
		iban string
		want bool
	}{
		{"DE89370400440532013000", true},
		{"GB82WEST12345698765432", true},
		{"DE89370400440532013001", false},
		{"DE8937040044053201300", false},
		{"DE89-3704", false},
	}
	for _, tt := range tests {
		if got := ValidIBAN(tt.iban); got != tt.want {
			t.Errorf("ValidIBAN(%q): got %v, want %v", tt.iban, got, tt.want)
		}
	}
}

func TestReferences(t *testing.T) {
	text := "Aktenzeichen: 12 AB 1034/26\nKundennummer: 123456 bitte angeben. Az.: 3 M 123/26"
	got := FromText(text, now).References
	want := []Reference{
		{Label: "Aktenzeichen", Value: "12 AB 1034/26"},
		{Label: "Kundennummer", Value: "123456"},
		{Label: "Aktenzeichen", Value: "3 M 123/26"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDeadlineText(t *testing.T) {
	tests := []struct {
		days *int
		want string
	}{
		{nil, ""},
		{ptr(-5), "seit 5 Tagen abgelaufen"},
		{ptr(-1), "seit 1 Tag abgelaufen"},
		{ptr(0), "heute"},
		{ptr(1), "noch 1 Tag"},
		{ptr(14), "noch 14 Tage"},
	}
	for _, tt := range tests {
		if got := DeadlineText(tt.days); got != tt.want {
			t.Errorf("DeadlineText(%v) = %q, want %q", deref(tt.days), got, tt.want)
		}
	}
}

func ptr(n int) *int { return &n }

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
