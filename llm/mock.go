package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests. Queued replies are used
// in order, then the fixed reply.
type MockProvider struct {
	mu      sync.Mutex
	reply   string
	queue   []string
	err     error
	prompts []Prompt

	// CompleteFunc, when set, answers every prompt instead.
	CompleteFunc func(ctx context.Context, p Prompt) (*Completion, error)
}

// NewMockProvider creates a mock with an empty reply.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// SetResponse sets the reply used once the queue is drained.
func (m *MockProvider) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = text
}

// QueueResponses appends one-shot replies.
func (m *MockProvider) QueueResponses(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, texts...)
}

// SetError makes every call fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LastPrompt returns the most recent prompt, or nil.
func (m *MockProvider) LastPrompt() *Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return nil
	}
	p := m.prompts[len(m.prompts)-1]
	return &p
}

// CallCount returns how many prompts were received.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, p)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	text := m.reply
	if len(m.queue) > 0 {
		text, m.queue = m.queue[0], m.queue[1:]
	}
	return &Completion{
		Text:       text,
		Model:      "mock",
		StopReason: "stop",
		TokensIn:   len(p.System) + len(p.Text),
		TokensOut:  len(text),
	}, nil
}
