// Package mailer delivers automation emails.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/protocol"
)

var ErrNoRecipients = errors.New("email has no recipients")

// Config holds the SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	config Config
	logger *slog.Logger
	now    func() time.Time
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(config Config, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		config: config,
		logger: log.Module(logger, "smtp_sender"),
		now:    time.Now,
		send:   smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, email protocol.Email) error {
	recipients := append(append([]string{}, email.To...), email.Cc...)
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	err := s.send(addr, auth, s.config.From, recipients, buildMessage(s.config.From, email, s.now()))
	if err != nil {
		return fmt.Errorf("failed to send email via %s: %w", addr, err)
	}

	s.logger.InfoContext(ctx, "Email sent", "to", email.To, "subject", email.Subject)

	return nil
}

func buildMessage(from string, email protocol.Email, date time.Time) []byte {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(email.To, ", ") + "\r\n")

	if len(email.Cc) > 0 {
		b.WriteString("Cc: " + strings.Join(email.Cc, ", ") + "\r\n")
	}

	b.WriteString("Subject: " + sanitizeHeader(email.Subject) + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.Body)

	return []byte(b.String())
}

// sanitizeHeader keeps rendered values from injecting extra headers.
func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

// LogSender only logs the email. It backs dry runs and deployments without
// an SMTP relay.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: log.Module(logger, "log_sender")}
}

func (s *LogSender) Send(ctx context.Context, email protocol.Email) error {
	if len(email.To)+len(email.Cc) == 0 {
		return ErrNoRecipients
	}

	s.logger.InfoContext(ctx, "Email not delivered (log sender)",
		"to", email.To, "cc", email.Cc, "subject", email.Subject, "body_length", len(email.Body))

	return nil
}
