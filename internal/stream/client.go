package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/types"
)

// APIError is a non-2xx answer to a generate request. No stream was opened.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("generate request rejected (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("generate request rejected (HTTP %d)", e.StatusCode)
}

// Client starts runs on a remote lead-engine server.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  *zap.Logger
	// Strict validates every event against the event schema; see Decoder.Strict.
	Strict bool
}

// Run is an open event stream. Close it when done.
type Run struct {
	*Decoder
	body io.ReadCloser
}

// Close releases the connection. Closing before the stream ends cancels the run
// server-side.
func (r *Run) Close() error {
	return r.body.Close()
}

// Generate posts q and returns the event stream. Rejections before the stream opens
// are returned as *APIError.
func (c *Client) Generate(ctx context.Context, q types.SearchQuery) (*Run, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/api/lead-engine/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = json.Unmarshal(data, apiErr)
		return nil, apiErr
	}

	dec := NewDecoder(resp.Body, c.Logger)
	if c.Strict {
		dec.Strict()
	}
	return &Run{Decoder: dec, body: resp.Body}, nil
}
