package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiProvider calls OpenAI's chat completions through the official SDK.
type openaiProvider struct {
	client    openai.Client
	model     string
	maxTokens int
	retry     RetryConfig
}

func newOpenAI(cfg ProviderConfig) *openaiProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openaiProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
	}
}

// Complete implements Provider.
func (p *openaiProvider) Complete(ctx context.Context, pr Prompt) (*Completion, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if pr.System != "" {
		messages = append(messages, openai.SystemMessage(pr.System))
	}
	messages = append(messages, openai.UserMessage(pr.Text))

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens(pr, p.maxTokens))),
	}
	if pr.Temperature != nil {
		params.Temperature = openai.Float(*pr.Temperature)
	}

	var resp *openai.ChatCompletion
	err := retry(ctx, p.retry, "openai", func(ctx context.Context) (err error) {
		resp, err = p.client.Chat.Completions.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	c := &Completion{
		Model:     resp.Model,
		TokensIn:  int(resp.Usage.PromptTokens),
		TokensOut: int(resp.Usage.CompletionTokens),
	}
	if len(resp.Choices) > 0 {
		c.Text = resp.Choices[0].Message.Content
		c.StopReason = string(resp.Choices[0].FinishReason)
	}
	return c, nil
}
