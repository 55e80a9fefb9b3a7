package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/pkg/config"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender builds the production sender.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers the message. Provider rejections bubble up verbatim so the
// caller's retry policy can classify them.
func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("email recipient required")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := strings.Builder{}
	msg.WriteString("From: " + s.cfg.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// NoopSender logs instead of sending; used in development and tests.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender builds the development sender.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

// Send records the message without delivering it.
func (s *NoopSender) Send(to, subject, htmlBody string) error {
	s.logger.Sugar().Infow("email suppressed", "to", to, "subject", subject, "bytes", len(htmlBody))
	return nil
}
