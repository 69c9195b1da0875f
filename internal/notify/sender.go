// Package notify sends e-mail alerts for urgent letters.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/config"
	"github.com/amtspost/amtspost/internal/urgency"
)

type Message struct {
	To      string
	From    string
	Subject string
	Body    string
}

// Sender delivers alerts over SMTP.
type Sender struct {
	config config.NotifyConfig
	log    *slog.Logger
	send   func(ctx context.Context, from, to string, msg []byte) error
}

func NewSender(cfg config.NotifyConfig) *Sender {
	s := &Sender{config: cfg, log: slog.Default().With("component", "notify")}
	s.send = s.deliver
	return s
}

// ShouldAlert reports whether a letter of the given tier reaches the
// configured minimum tier.
func (s *Sender) ShouldAlert(tier urgency.Tier) bool {
	switch tier {
	case urgency.TierRed:
		return true
	case urgency.TierYellow:
		return s.config.MinTier == string(urgency.TierYellow)
	}
	return false
}

// Notify renders and sends an alert for report if its tier qualifies. It
// reports whether an alert was sent.
func (s *Sender) Notify(ctx context.Context, report *analyzer.Report) (bool, error) {
	if !s.config.Enabled || !s.ShouldAlert(report.Result.Tier) {
		return false, nil
	}
	alert, err := RenderAlert(report)
	if err != nil {
		return false, err
	}
	msg := Message{From: s.config.From, To: s.config.To, Subject: alert.Subject, Body: alert.Body}
	if err := s.Send(ctx, msg); err != nil {
		return false, err
	}
	s.log.Info("alert sent", "id", report.ID, "tier", report.Result.Tier, "to", s.config.To)
	return true, nil
}

// Send validates and delivers one message.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	raw, err := buildMessage(msg, time.Now())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(ctx, msg.From, msg.To, raw); err != nil {
		return sanitizeSMTPError(err)
	}
	return nil
}

// ValidateEmail checks for injection characters and RFC 5322 compliance
func ValidateEmail(email string) error {
	if strings.ContainsAny(email, "\r\n,;") {
		return fmt.Errorf("email contains invalid characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	return nil
}

func buildMessage(msg Message, date time.Time) ([]byte, error) {
	if err := ValidateEmail(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := ValidateEmail(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	// Reject headers with CRLF to prevent injection
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return nil, fmt.Errorf("subject contains invalid characters")
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes(), nil
}

func (s *Sender) deliver(ctx context.Context, from, to string, msg []byte) error {
	smtpCfg := s.config.SMTP
	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)

	if !smtpCfg.UseTLS {
		if smtpCfg.Username != "" {
			return fmt.Errorf("SMTP auth requires TLS")
		}
		return smtp.SendMail(addr, nil, from, []string{to}, msg)
	}

	dialer := &tls.Dialer{Config: &tls.Config{
		ServerName: smtpCfg.Host,
		MinVersion: tls.VersionTLS12,
	}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("TLS connection failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, smtpCfg.Host)
	if err != nil {
		return fmt.Errorf("SMTP client creation failed: %w", err)
	}
	defer client.Close()

	if smtpCfg.Username != "" {
		auth := smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("sender rejected: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("recipient rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data command failed: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("message write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message finalization failed: %w", err)
	}
	return client.Quit()
}

// sanitizeSMTPError keeps credentials and server chatter out of logs.
func sanitizeSMTPError(err error) error {
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "auth") {
		return fmt.Errorf("SMTP authentication failed")
	}
	if strings.Contains(s, "certificate") {
		return fmt.Errorf("TLS certificate error")
	}
	return fmt.Errorf("SMTP error: check your configuration")
}
