package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonathan/lead-engine/internal/fetch"
	"github.com/jonathan/lead-engine/internal/provider"
)

const providerName = "mail"

// DefaultAPIBaseURL is the public endpoint of the email-sending API.
const DefaultAPIBaseURL = "https://api.resend.com"

// APIConfig configures an APISender.
type APIConfig struct {
	APIKey  string
	BaseURL string
	Options *fetch.Options
}

// APISender sends through the email-sending HTTP API.
type APISender struct {
	http *fetch.Client
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// NewAPISender creates an API-backed sender.
func NewAPISender(cfg APIConfig) (*APISender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mail API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}

	opts := fetch.DefaultOptions()
	if cfg.Options != nil {
		copied := *cfg.Options
		opts = &copied
	}
	opts.Headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}

	httpClient, err := fetch.NewClient(baseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &APISender{http: httpClient}, nil
}

// Send delivers msg and returns the provider message id.
func (s *APISender) Send(ctx context.Context, msg provider.Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}

	text, htmlBody := bodies(msg.Body)
	req := sendRequest{
		From:    formatAddress(msg.FromEmail, msg.FromName),
		To:      []string{formatAddress(msg.To, msg.ToName)},
		Subject: msg.Subject,
		Text:    text,
		HTML:    htmlBody,
		ReplyTo: msg.ReplyTo,
	}

	var resp sendResponse
	if err := s.http.DoJSON(ctx, fetch.Request{Method: http.MethodPost, Path: "/emails", Body: req}, &resp); err != nil {
		return "", provider.Wrap(providerName, "send", err)
	}
	return resp.ID, nil
}
