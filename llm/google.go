package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// googleProvider calls Gemini. A model handle is built per prompt so the
// system instruction of one call never leaks into another.
type googleProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
	retry     RetryConfig
}

func newGoogle(cfg ProviderConfig) (*googleProvider, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}
	return &googleProvider{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
	}, nil
}

// Complete implements Provider.
func (p *googleProvider) Complete(ctx context.Context, pr Prompt) (*Completion, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetMaxOutputTokens(int32(maxTokens(pr, p.maxTokens)))
	if pr.Temperature != nil {
		model.SetTemperature(float32(*pr.Temperature))
	}
	if pr.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(pr.System))
	}

	var resp *genai.GenerateContentResponse
	err := retry(ctx, p.retry, "google", func(ctx context.Context) (err error) {
		resp, err = model.GenerateContent(ctx, genai.Text(pr.Text))
		return err
	})
	if err != nil {
		return nil, err
	}

	c := &Completion{Model: p.model}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		c.StopReason = strings.ToLower(strings.TrimPrefix(cand.FinishReason.String(), "FinishReason"))
		if cand.Content != nil {
			var text strings.Builder
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
			c.Text = text.String()
		}
	}
	if resp.UsageMetadata != nil {
		c.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		c.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return c, nil
}
