package telemetry

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer opens the run, hop, completion and fetch spans of one process.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // attach answers, prompts and queries
}

var (
	global     atomic.Pointer[Tracer]
	noopTracer = &Tracer{tracer: noop.NewTracerProvider().Tracer("refinery")}
)

// SetGlobalTracer installs t for GetTracer. Nil restores the no-op tracer.
func SetGlobalTracer(t *Tracer) {
	global.Store(t)
}

// GetTracer returns the installed tracer, or a no-op one.
func GetTracer() *Tracer {
	if t := global.Load(); t != nil {
		return t
	}
	return noopTracer
}

// NewTracer returns a tracer on the global otel provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{tracer: otel.Tracer(name), debug: debug}
}

// --- Hop Spans ---

// HopSpanOptions describes a finished hop.
type HopSpanOptions struct {
	Tag       string
	Endpoint  string
	Intent    string
	Iteration int
	Status    string
	Score     *float64
	Answer    string // Only included if debug=true
}

// StartHopSpan starts a span for a call to the agent behind tag.
func (t *Tracer) StartHopSpan(ctx context.Context, tag string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "hop."+tag, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("hop.tag", tag))
	return ctx, span
}

// EndHopSpan ends a hop span with attributes.
func (t *Tracer) EndHopSpan(span trace.Span, opts HopSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("hop.intent", opts.Intent),
		attribute.Int("hop.iteration", opts.Iteration),
		attribute.String("hop.status", opts.Status),
	}
	if opts.Endpoint != "" {
		attrs = append(attrs, attribute.String("hop.endpoint", opts.Endpoint))
	}
	if opts.Score != nil {
		attrs = append(attrs, attribute.Float64("hop.score", *opts.Score))
	}
	if t.debug && opts.Answer != "" {
		attrs = append(attrs, attribute.String("hop.answer", truncate(opts.Answer, 4000)))
	}
	span.SetAttributes(attrs...)
	endSpan(span, err)
}

// --- Run Spans ---

// StartRunSpan starts the span covering a whole critique/refine run.
func (t *Tracer) StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "pipeline.run", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("pipeline.run_id", runID))
	return ctx, span
}

// EndRunSpan ends a run span.
func (t *Tracer) EndRunSpan(span trace.Span, status string, iterations, steps int) {
	span.SetAttributes(
		attribute.String("pipeline.status", status),
		attribute.Int("pipeline.iterations", iterations),
		attribute.Int("pipeline.steps", steps),
	)
	if status == "error" {
		span.SetStatus(codes.Error, "pipeline ended in error")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// --- Completion Spans ---

// CompletionSpanOptions describes a finished model call.
type CompletionSpanOptions struct {
	Model       string
	StopReason  string
	Temperature *float64
	TokensIn    int
	TokensOut   int
	Prompt      string // debug only
	Reply       string // debug only
}

// StartCompletionSpan starts a span for one model call through provider.
func (t *Tracer) StartCompletionSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "llm.complete", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("llm.provider", provider))
	return ctx, span
}

// EndCompletionSpan ends a completion span. Prompt and reply text are
// attached only in debug mode.
func (t *Tracer) EndCompletionSpan(span trace.Span, opts CompletionSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.model", opts.Model),
		attribute.Int("llm.tokens.input", opts.TokensIn),
		attribute.Int("llm.tokens.output", opts.TokensOut),
	}
	if opts.StopReason != "" {
		attrs = append(attrs, attribute.String("llm.stop_reason", opts.StopReason))
	}
	if opts.Temperature != nil {
		attrs = append(attrs, attribute.Float64("llm.temperature", *opts.Temperature))
	}
	if t.debug {
		if opts.Prompt != "" {
			attrs = append(attrs, attribute.String("llm.prompt", truncate(opts.Prompt, 4000)))
		}
		if opts.Reply != "" {
			attrs = append(attrs, attribute.String("llm.reply", truncate(opts.Reply, 4000)))
		}
	}
	span.SetAttributes(attrs...)
	endSpan(span, err)
}

// --- Fetch Spans ---

// StartFetchSpan starts a span for a web search and page fetch.
func (t *Tracer) StartFetchSpan(ctx context.Context, query string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "web.fetch", trace.WithSpanKind(trace.SpanKindClient))
	if t.debug {
		span.SetAttributes(attribute.String("web.query", truncate(query, 500)))
	}
	return ctx, span
}

// EndFetchSpan ends a fetch span.
func (t *Tracer) EndFetchSpan(span trace.Span, source string, pagesTried int, err error) {
	span.SetAttributes(
		attribute.String("web.source", source),
		attribute.Int("web.pages_tried", pagesTried),
	)
	endSpan(span, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// --- Context Propagation ---

// InjectHTTP writes the trace context of ctx into outgoing hop headers.
func InjectHTTP(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// ExtractHTTP continues the caller's trace from incoming hop headers.
func ExtractHTTP(ctx context.Context, h http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(h))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
