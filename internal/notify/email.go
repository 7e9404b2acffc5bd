// Package notify holds the outbound side channels: email and Microsoft
// Graph activity notifications. Both are thin passthroughs over their
// transports.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	gosmtp "net/smtp"
	"strconv"
	"strings"
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, auth gosmtp.Auth, from string, to []string, msg []byte) error

// EmailSender sends plain-text mail over SMTP.
type EmailSender struct {
	cfg      EmailConfig
	sendMail sendMailFunc
}

func NewEmailSender(cfg EmailConfig) *EmailSender {
	if cfg.Port < 1 {
		cfg.Port = 587
	}
	return &EmailSender{
		cfg:      cfg,
		sendMail: gosmtp.SendMail,
	}
}

// Enabled reports whether SMTP is configured; callers skip mail when not.
func (s *EmailSender) Enabled() bool {
	return s != nil && strings.TrimSpace(s.cfg.Host) != ""
}

func (s *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !s.Enabled() {
		return fmt.Errorf("smtp host is not configured")
	}

	recipient, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	from := strings.TrimSpace(s.cfg.From)
	if from == "" {
		return fmt.Errorf("smtp sender is not configured")
	}
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	var auth gosmtp.Auth
	if s.cfg.Username != "" {
		auth = gosmtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	message := strings.Join([]string{
		"From: " + sender.String(),
		"To: " + recipient.String(),
		"Subject: " + sanitizeHeader(subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	if err := s.sendMail(addr, auth, sender.Address, []string{recipient.Address}, []byte(message)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func sanitizeHeader(value string) string {
	cleaned := strings.ReplaceAll(value, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	return strings.TrimSpace(cleaned)
}
