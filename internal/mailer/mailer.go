package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/campusperks/backend/config"
)

// Sender delivers a single email. Implementations must be safe for
// concurrent use by worker goroutines.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// New returns an SMTP sender, or a log-only sender when no SMTP host is
// configured (the development default).
func New(cfg config.EmailConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		return &LogSender{logger: logger}
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SMTPSender delivers mail over SMTP with implicit TLS (port 465 style).
type SMTPSender struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// Send dials the SMTP server, authenticates and submits one message.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.cfg.SMTPHost}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(s.message(to, subject, htmlBody))); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

func (s *SMTPSender) message(to, subject, htmlBody string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.cfg.FromName, s.cfg.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return b.String()
}

// LogSender writes the message to the log instead of delivering it.
type LogSender struct {
	logger *zap.Logger
}

// Send logs the message and reports success.
func (l *LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	l.logger.Info("email (log-only mode)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", htmlBody))
	return nil
}
