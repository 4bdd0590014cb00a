// Package llm provides the LLM client used to rewrite outreach drafts on request.
package llm

import "time"

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierLite is for short, cheap edits
	TierLite ModelTier = "lite"
	// TierStandard is the default for draft rewriting
	TierStandard ModelTier = "standard"
)

// Config holds the model configuration
type Config struct {
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
	// Timeout bounds a single generation call. Zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature:     0.4,
		MaxOutputTokens: 1024,
		Timeout:         45 * time.Second,
	}
}

// GetModel returns the model name for a tier, falling back to the standard tier.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	return c.Models[TierStandard]
}

// WithModel returns a copy of c with model set for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}
