package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ExportConfig says where a refinery process sends its spans. Each
// process (registry, scraper, critic, refiner, ask) is its own service.
type ExportConfig struct {
	Service  string
	Version  string
	Endpoint string // host:port; falls back to OTEL_EXPORTER_OTLP_ENDPOINT
	Protocol string // grpc (default) or http
	Insecure bool
	Debug    bool
}

// endpoint returns the collector address without a scheme.
func (c ExportConfig) endpoint() string {
	ep := c.Endpoint
	if ep == "" {
		ep = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	ep = strings.TrimPrefix(ep, "http://")
	return strings.TrimPrefix(ep, "https://")
}

// Enabled reports whether a collector is configured. Without one the
// process keeps the no-op tracer.
func (c ExportConfig) Enabled() bool {
	return c.endpoint() != ""
}

// Exporter owns the SDK provider installed by Start.
type Exporter struct {
	tp *sdktrace.TracerProvider
}

// Start installs a batching OTLP provider and the W3C trace context
// propagator that carries runs across hops, then sets the global Tracer.
func Start(ctx context.Context, cfg ExportConfig) (*Exporter, error) {
	endpoint := cfg.endpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("telemetry endpoint not configured")
	}

	exp, err := spanExporter(ctx, cfg.Protocol, endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	service := cfg.Service
	if service == "" {
		service = "refinery"
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(service),
			semconv.ServiceVersion(cfg.Version),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	SetGlobalTracer(NewTracer(service, cfg.Debug))

	return &Exporter{tp: tp}, nil
}

func spanExporter(ctx context.Context, protocol, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	switch protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown protocol %q (use grpc or http)", protocol)
	}
}

// OnShutdown implements shutdown.Handler. Pending spans are flushed
// before the exporter closes, and the no-op tracer is restored.
func (e *Exporter) OnShutdown(ctx context.Context) error {
	defer SetGlobalTracer(nil)
	if err := e.tp.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush spans: %w", err)
	}
	return e.tp.Shutdown(ctx)
}
