package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/lead-engine/internal/prompts"
	"github.com/jonathan/lead-engine/internal/types"
)

// ErrEmptyRewrite is returned when the model answers without a usable subject or body.
var ErrEmptyRewrite = errors.New("model returned an empty draft")

// Rewriter rewrites a lead's draft following free-text instructions. The result is a
// suggestion; callers store it only on explicit request.
type Rewriter struct {
	client Client
	tier   ModelTier
}

// NewRewriter creates a Rewriter that uses the standard tier.
func NewRewriter(client Client) *Rewriter {
	return &Rewriter{client: client, tier: TierStandard}
}

type rewriteResponse struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Rewrite returns a new draft for lead.
func (r *Rewriter) Rewrite(ctx context.Context, lead *types.Lead, instructions string) (types.Draft, error) {
	prompt, err := BuildRewritePrompt(lead, instructions)
	if err != nil {
		return types.Draft{}, err
	}

	raw, err := r.client.GenerateJSON(ctx, prompt, r.tier)
	if err != nil {
		return types.Draft{}, fmt.Errorf("draft rewrite failed: %w", err)
	}

	var resp rewriteResponse
	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), &resp); err != nil {
		return types.Draft{}, fmt.Errorf("failed to parse rewrite response: %w", err)
	}
	draft := types.Draft{
		Subject: strings.Join(strings.Fields(resp.Subject), " "),
		Body:    strings.TrimSpace(resp.Body),
	}
	if draft.Subject == "" || draft.Body == "" {
		return types.Draft{}, ErrEmptyRewrite
	}
	return draft, nil
}

// BuildRewritePrompt renders the rewrite prompt for lead. Blank fields, including
// empty instructions, take the prompt's defaults.
func BuildRewritePrompt(lead *types.Lead, instructions string) (prompts.Prompt, error) {
	tmpl, err := prompts.Get(prompts.Outreach, prompts.RewriteDraft)
	if err != nil {
		return prompts.Prompt{}, err
	}

	data := map[string]string{
		"Company":      lead.Company.Name,
		"Industry":     lead.Company.Industry,
		"JobTitle":     lead.Job.Title,
		"Subject":      lead.Draft.Subject,
		"Body":         lead.Draft.Body,
		"Instructions": strings.TrimSpace(instructions),
	}
	if c, ok := lead.PrimaryContact(); ok {
		data["ContactName"] = c.Name
		data["ContactTitle"] = c.Title
	}
	return tmpl.Render(data)
}
