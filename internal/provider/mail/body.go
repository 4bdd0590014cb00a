// Package mail delivers drafted outreach email, either through the email-sending API
// or over plain SMTP.
package mail

import (
	"errors"
	"fmt"
	"html"
	netmail "net/mail"
	"strings"

	"github.com/jonathan/lead-engine/internal/fetch"
	"github.com/jonathan/lead-engine/internal/provider"
)

// ErrInvalidMessage is returned before any network call when a message lacks a sender,
// recipient or subject.
var ErrInvalidMessage = errors.New("invalid email message")

func validate(msg provider.Message) error {
	if _, err := netmail.ParseAddress(msg.FromEmail); err != nil {
		return fmt.Errorf("%w: sender %q: %v", ErrInvalidMessage, msg.FromEmail, err)
	}
	if _, err := netmail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", ErrInvalidMessage, msg.To, err)
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	return nil
}

// bodies returns the plain-text and HTML parts for a draft body.
// Drafts are plain text; an edited draft may carry markup, in which case the text part
// is derived from it.
func bodies(body string) (text, htmlBody string) {
	if looksLikeHTML(body) {
		plain, err := fetch.HTMLToText(body)
		if err != nil {
			plain = body
		}
		return plain, body
	}
	return body, plainToHTML(body)
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	for _, tag := range []string{"<p", "<br", "<div", "<a ", "<html", "<b>", "<ul"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

func plainToHTML(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(lines[i])
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>\n")
	}
	return b.String()
}

func formatAddress(email, name string) string {
	if name == "" {
		return email
	}
	return (&netmail.Address{Name: name, Address: email}).String()
}
