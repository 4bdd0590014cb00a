package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/lead-engine/internal/provider"
	"gopkg.in/gomail.v2"
)

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	dialer dialer
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{dialer: gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)}, nil
}

// Send delivers msg. The returned id is the generated Message-ID header.
// SMTP dialing does not observe ctx once started; ctx is checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg provider.Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := messageID(msg.FromEmail)

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)

	text, htmlBody := bodies(msg.Body)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", &provider.Error{Provider: providerName, Op: "send", Message: "SMTP delivery failed", Cause: err}
	}
	return id, nil
}

func messageID(from string) string {
	host := "localhost"
	if _, domain, ok := strings.Cut(from, "@"); ok && domain != "" {
		host = domain
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}
