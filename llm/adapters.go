package llm

import (
	"fmt"
	"strings"
)

// GroqBaseURL serves the default refinery model.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// backend describes how a provider name is reached.
type backend struct {
	// compat backends speak the OpenAI chat completions protocol over
	// plain HTTP; baseURL is their default endpoint, if they have one.
	compat  bool
	baseURL string
	keyless bool
}

var backends = map[string]backend{
	"anthropic":     {},
	"openai":        {},
	"google":        {},
	"groq":          {compat: true, baseURL: GroqBaseURL},
	"mistral":       {compat: true, baseURL: "https://api.mistral.ai/v1"},
	"xai":           {compat: true, baseURL: "https://api.x.ai/v1"},
	"openrouter":    {compat: true, baseURL: "https://openrouter.ai/api/v1"},
	"ollama":        {compat: true, baseURL: "http://localhost:11434/v1", keyless: true},
	"ollama-local":  {compat: true, baseURL: "http://localhost:11434/v1", keyless: true},
	"lmstudio":      {compat: true, baseURL: "http://localhost:1234/v1", keyless: true},
	"openai-compat": {compat: true, keyless: true},
	"litellm":       {compat: true, keyless: true},
}

// NewProvider builds the provider cfg names. A blank provider is inferred
// from the model.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" {
		cfg.Provider = InferProviderFromModel(cfg.Model)
		if cfg.Provider == "" {
			return nil, fmt.Errorf("cannot determine provider for model %q; set provider explicitly", cfg.Model)
		}
	}
	b, ok := backends[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.compat {
		if cfg.BaseURL == "" {
			cfg.BaseURL = b.baseURL
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base_url is required for provider %s", cfg.Provider)
		}
		return newCompat(cfg, nil), nil
	}

	switch cfg.Provider {
	case "anthropic":
		return newAnthropic(cfg), nil
	case "openai":
		return newOpenAI(cfg), nil
	default:
		return newGoogle(cfg)
	}
}

var modelPrefixes = []struct{ prefix, provider string }{
	{"claude", "anthropic"},
	{"gpt-", "openai"},
	{"o1", "openai"},
	{"o3", "openai"},
	{"chatgpt", "openai"},
	{"gemini", "google"},
	{"gemma", "google"},
	{"llama", "groq"},
	{"mistral", "mistral"},
	{"mixtral", "mistral"},
	{"codestral", "mistral"},
	{"pixtral", "mistral"},
	{"grok", "xai"},
}

// InferProviderFromModel guesses the provider from a model name, or
// returns "".
func InferProviderFromModel(model string) string {
	model = strings.ToLower(model)
	for _, m := range modelPrefixes {
		if strings.HasPrefix(model, m.prefix) {
			return m.provider
		}
	}
	return ""
}
