package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Prompt is a single-turn request. Every agent sends exactly one user
// turn, optionally behind a system instruction.
type Prompt struct {
	System      string
	Text        string
	MaxTokens   int
	Temperature *float64
}

// Completion is a model's reply to a Prompt.
type Completion struct {
	Text       string
	Model      string
	StopReason string
	TokensIn   int
	TokensOut  int
}

// Provider turns a prompt into a completion.
type Provider interface {
	Complete(ctx context.Context, p Prompt) (*Completion, error)
}

// ProviderConfig is the [llm] section of refinery.toml.
type ProviderConfig struct {
	Provider  string      `json:"provider" toml:"provider"` // groq, anthropic, openai, google, mistral, xai, openrouter, ollama, lmstudio, openai-compat, litellm
	Model     string      `json:"model" toml:"model"`
	APIKey    string      `json:"-" toml:"-"`
	MaxTokens int         `json:"max_tokens" toml:"max_tokens"`
	BaseURL   string      `json:"base_url" toml:"base_url"`
	Retry     RetryConfig `json:"retry" toml:"retry"`
}

// RetryConfig bounds retries of rate-limited and 5xx calls.
type RetryConfig struct {
	MaxRetries  int           `json:"max_retries" toml:"max_retries"`
	MaxBackoff  time.Duration `json:"max_backoff" toml:"max_backoff"`
	InitBackoff time.Duration `json:"init_backoff" toml:"init_backoff"`
}

// Validate reports the first missing field. Local servers need no key.
func (c *ProviderConfig) Validate() error {
	switch {
	case c.Provider == "":
		return fmt.Errorf("provider is required")
	case c.Model == "":
		return fmt.Errorf("model is required")
	case c.APIKey == "" && !backends[c.Provider].keyless:
		return fmt.Errorf("api key is required for %s", c.Provider)
	case c.MaxTokens <= 0:
		return fmt.Errorf("max_tokens is required")
	}
	return nil
}

// GenerateOption adjusts one Generate call.
type GenerateOption func(*Prompt)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(p *Prompt) { p.Temperature = &t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) GenerateOption {
	return func(p *Prompt) { p.MaxTokens = n }
}

// WithSystem sets the system instruction.
func WithSystem(s string) GenerateOption {
	return func(p *Prompt) { p.System = s }
}

// Generate sends text to p and returns the trimmed reply. A blank reply
// is an error: no agent can use it.
func Generate(ctx context.Context, p Provider, text string, opts ...GenerateOption) (string, error) {
	if p == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}
	prompt := Prompt{Text: text}
	for _, opt := range opts {
		opt(&prompt)
	}

	c, err := p.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(c.Text)
	if out == "" {
		return "", fmt.Errorf("empty completion from model %q", c.Model)
	}
	return out, nil
}

// maxTokens picks the per-prompt cap when set, else the configured one.
func maxTokens(p Prompt, configured int) int {
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return configured
}
