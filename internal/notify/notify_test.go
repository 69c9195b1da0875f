package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/config"
	"github.com/amtspost/amtspost/internal/urgency"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"ich@example.org", false},
		{"Ich <ich@example.org>", false},
		{"ich@example.org\r\nBcc: x@evil.example", true},
		{"a@example.org, b@example.org", true},
		{"not an address", true},
	}
	for _, tt := range tests {
		err := ValidateEmail(tt.email)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateEmail(%q) = %v, wantErr %v", tt.email, err, tt.wantErr)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	date := time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)
	raw, err := buildMessage(Message{
		From:    "amtspost@example.org",
		To:      "ich@example.org",
		Subject: "[Amtspost ROT] Vollstreckung / Pfändung",
		Body:    "Zeile 1\nZeile 2",
	}, date)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	msg := string(raw)
	for _, want := range []string{
		"From: amtspost@example.org\r\n",
		"To: ich@example.org\r\n",
		"Subject: =?utf-8?q?",
		"Date: Thu, 15 Oct 2026 10:30:00 +0000\r\n",
		"\r\n\r\nZeile 1\r\nZeile 2",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessageRejectsInjection(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"subject", Message{From: "a@example.org", To: "b@example.org", Subject: "Hallo\r\nBcc: c@evil.example"}},
		{"recipient", Message{From: "a@example.org", To: "b@example.org\nBcc: c@evil.example", Subject: "x"}},
		{"sender", Message{From: "", To: "b@example.org", Subject: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildMessage(tt.msg, time.Now()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestShouldAlert(t *testing.T) {
	tests := []struct {
		minTier string
		tier    urgency.Tier
		want    bool
	}{
		{"red", urgency.TierRed, true},
		{"red", urgency.TierYellow, false},
		{"yellow", urgency.TierYellow, true},
		{"yellow", urgency.TierRed, true},
		{"yellow", urgency.TierGreen, false},
	}
	for _, tt := range tests {
		s := NewSender(config.NotifyConfig{MinTier: tt.minTier})
		if got := s.ShouldAlert(tt.tier); got != tt.want {
			t.Errorf("min %s, tier %s: got %v, want %v", tt.minTier, tt.tier, got, tt.want)
		}
	}
}

func analyze(t *testing.T, text string) *analyzer.Report {
	t.Helper()
	now := time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)
	a := analyzer.New(config.Analysis{MinChars: 20}, analyzer.WithClock(func() time.Time { return now }))
	report, err := a.Analyze("brief.pdf", text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return report
}

const seizureLetter = "Es droht eine Pfändung Ihres Kontos. Offener Betrag: 1.250,00 EUR. Reagieren Sie innerhalb von 3 Tagen."

func TestRenderAlert(t *testing.T) {
	report := analyze(t, seizureLetter)
	alert, err := RenderAlert(report)
	if err != nil {
		t.Fatalf("RenderAlert: %v", err)
	}
	if alert.Subject != "[Amtspost ROT] Vollstreckung / Pfändung (100/100)" {
		t.Errorf("subject: got %q", alert.Subject)
	}
	for _, want := range []string{
		"Quelle:      brief.pdf",
		"Stufe:       ROT (100/100)",
		"Frist:       noch 3 Tage",
		"  - pfändung",
		"1.250,00 EUR",
		"Analyse-ID: " + report.ID,
	} {
		if !strings.Contains(alert.Body, want) {
			t.Errorf("body missing %q:\n%s", want, alert.Body)
		}
	}
	if strings.Contains(alert.Body, "Ihres Kontos") {
		t.Error("alert must not quote the letter")
	}
}

func TestNotify(t *testing.T) {
	cfg := config.NotifyConfig{Enabled: true, From: "amtspost@example.org", To: "ich@example.org", MinTier: "red"}

	t.Run("sends for red", func(t *testing.T) {
		s := NewSender(cfg)
		var got []byte
		s.send = func(_ context.Context, from, to string, msg []byte) error {
			got = msg
			return nil
		}
		sent, err := s.Notify(context.Background(), analyze(t, seizureLetter))
		if err != nil || !sent {
			t.Fatalf("got sent=%v err=%v", sent, err)
		}
		if !strings.Contains(string(got), "To: ich@example.org") {
			t.Errorf("message: %s", got)
		}
	})

	t.Run("skips green", func(t *testing.T) {
		s := NewSender(cfg)
		s.send = func(context.Context, string, string, []byte) error {
			t.Error("send must not be called")
			return nil
		}
		sent, err := s.Notify(context.Background(), analyze(t, "Die Zwangsvollstreckung wurde aufgehoben."))
		if err != nil || sent {
			t.Errorf("got sent=%v err=%v", sent, err)
		}
	})

	t.Run("sanitizes delivery errors", func(t *testing.T) {
		s := NewSender(cfg)
		s.send = func(context.Context, string, string, []byte) error {
			return errors.New("535 auth failed for user secret@example.org")
		}
		_, err := s.Notify(context.Background(), analyze(t, seizureLetter))
		if err == nil || err.Error() != "SMTP authentication failed" {
			t.Errorf("got %v", err)
		}
	})
}
