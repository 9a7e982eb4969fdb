package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// compatProvider posts to an OpenAI-compatible /chat/completions endpoint:
// Groq (the default), Mistral, xAI, OpenRouter, LiteLLM and local servers.
type compatProvider struct {
	name      string
	url       string
	apiKey    string
	model     string
	maxTokens int
	retry     RetryConfig
	client    *http.Client
}

func newCompat(cfg ProviderConfig, client *http.Client) *compatProvider {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &compatProvider{
		name:      cfg.Provider,
		url:       strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
		client:    client,
	}
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type compatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      compatMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements Provider.
func (p *compatProvider) Complete(ctx context.Context, pr Prompt) (*Completion, error) {
	req := compatRequest{
		Model:       p.model,
		MaxTokens:   maxTokens(pr, p.maxTokens),
		Temperature: pr.Temperature,
	}
	if pr.System != "" {
		req.Messages = append(req.Messages, compatMessage{Role: "system", Content: pr.System})
	}
	req.Messages = append(req.Messages, compatMessage{Role: "user", Content: pr.Text})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", p.name, err)
	}

	var resp compatResponse
	err = retry(ctx, p.retry, p.name, func(ctx context.Context) error {
		resp = compatResponse{}
		return p.post(ctx, body, &resp)
	})
	if err != nil {
		return nil, err
	}

	c := &Completion{
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		c.Text = resp.Choices[0].Message.Content
		c.StopReason = resp.Choices[0].FinishReason
	}
	return c, nil
}

// post sends one attempt. Error text carries the status code, which the
// retry classifier reads.
func (p *compatProvider) post(ctx context.Context, body []byte, out *compatResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d %s: %s", p.name, resp.StatusCode,
			strings.ToLower(http.StatusText(resp.StatusCode)), strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", p.name, err)
	}
	if out.Error != nil {
		return fmt.Errorf("%s: %s", p.name, out.Error.Message)
	}
	return nil
}
