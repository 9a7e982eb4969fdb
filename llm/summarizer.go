package llm

import (
	"context"
	"fmt"
)

// Summarizer uses an LLM to condense fetched content around a question.
type Summarizer struct {
	provider  Provider
	maxTokens int
}

// NewSummarizer creates a new summarizer with the given LLM provider.
func NewSummarizer(provider Provider) *Summarizer {
	return &Summarizer{provider: provider, maxTokens: 1000}
}

// Summarize extracts the parts of content that answer question.
func (s *Summarizer) Summarize(ctx context.Context, content, question string) (string, error) {
	if s == nil || s.provider == nil {
		return "", fmt.Errorf("no LLM provider configured for summarization")
	}

	prompt := fmt.Sprintf(`Web page content:
---
%s
---

Question: %s

Write a clear, structured answer for a student based only on the content above.
- Keep the answer focused on the question
- Use quotation marks for exact language from the content
- Limit quotes to 125 characters
- If the content does not address the question, say so`, content, question)

	text, err := Generate(ctx, s.provider, prompt, WithMaxTokens(s.maxTokens), WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("summarization LLM call failed: %w", err)
	}
	return text, nil
}
