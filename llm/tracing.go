package llm

import (
	"context"

	"github.com/vinayprograms/refinery/telemetry"
)

// traced records each completion as a child of the current hop span.
type traced struct {
	next Provider
	name string
}

// WithTracing wraps p so each call emits an llm.complete span tagged with
// provider name.
func WithTracing(p Provider, name string) Provider {
	return &traced{next: p, name: name}
}

func (t *traced) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartCompletionSpan(ctx, t.name)

	c, err := t.next.Complete(ctx, p)

	attrs := telemetry.CompletionSpanOptions{Temperature: p.Temperature, Prompt: p.Text}
	if c != nil {
		attrs.Model = c.Model
		attrs.StopReason = c.StopReason
		attrs.TokensIn = c.TokensIn
		attrs.TokensOut = c.TokensOut
		attrs.Reply = c.Text
	}
	tracer.EndCompletionSpan(span, attrs, err)
	return c, err
}
