package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider calls the Messages API. SDK retries are disabled so
// that retry() alone decides.
type anthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
	retry     RetryConfig
}

func newAnthropic(cfg ProviderConfig) *anthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
	}
}

// Complete implements Provider.
func (p *anthropicProvider) Complete(ctx context.Context, pr Prompt) (*Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens(pr, p.maxTokens)),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(pr.Text))},
	}
	if pr.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: pr.System}}
	}
	if pr.Temperature != nil {
		params.Temperature = anthropic.Float(*pr.Temperature)
	}

	var msg *anthropic.Message
	err := retry(ctx, p.retry, "anthropic", func(ctx context.Context) (err error) {
		msg, err = p.client.Messages.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Completion{
		Text:       text.String(),
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		TokensIn:   int(msg.Usage.InputTokens),
		TokensOut:  int(msg.Usage.OutputTokens),
	}, nil
}
