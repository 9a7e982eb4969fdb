package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNoopJournal(t *testing.T) {
	j := NewNoopJournal()
	j.LogEvent("test", map[string]interface{}{"key": "value"})
	j.LogRun(RunRecord{RunID: "r"})

	if err := j.Flush(); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFileJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")

	j, err := NewFileJournal(path)
	if err != nil {
		t.Fatalf("NewFileJournal() error = %v", err)
	}

	j.LogEvent("registry_down", map[string]interface{}{"url": "http://localhost:8000"})
	score := 9.0
	j.LogRun(RunRecord{
		RunID:      "run-1",
		Question:   "What is Go?",
		Status:     "complete",
		Phase:      "critiqued",
		Score:      &score,
		Iterations: 0,
		Steps:      2,
		Duration:   time.Second,
	})
	j.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var run RunRecord
	if err := json.Unmarshal([]byte(lines[1]), &run); err != nil {
		t.Fatalf("Unmarshal run: %v", err)
	}
	if run.RunID != "run-1" || run.Status != "complete" || run.Score == nil || *run.Score != 9 {
		t.Errorf("run = %+v", run)
	}
	if run.Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestHTTPJournal(t *testing.T) {
	var got []map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer ts.Close()

	j := NewHTTPJournal(ts.URL)
	j.LogRun(RunRecord{RunID: "run-2", Status: "incomplete"})
	if err := j.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(got) != 1 || got[0]["run_id"] != "run-2" {
		t.Errorf("posted = %v", got)
	}
	if err := j.Flush(); err != nil {
		t.Errorf("empty Flush() error = %v", err)
	}
}

func TestHTTPJournal_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	j := NewHTTPJournal(ts.URL)
	j.LogEvent("x", nil)
	if err := j.Flush(); err == nil {
		t.Error("expected error for 502")
	}
}

func TestNewJournal(t *testing.T) {
	tests := []struct {
		protocol string
		wantErr  bool
	}{
		{"noop", false},
		{"", false},
		{"http", false},
		{"kafka", true},
	}

	for _, tt := range tests {
		t.Run(tt.protocol, func(t *testing.T) {
			j, err := NewJournal(tt.protocol, "http://localhost:0")
			if (err != nil) != tt.wantErr {
				t.Errorf("NewJournal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if j != nil {
				j.Close()
			}
		})
	}
}

func TestHTTPPropagationRoundTrip(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "hop.critic")
	defer span.End()

	h := http.Header{}
	InjectHTTP(ctx, h)
	if h.Get("traceparent") == "" {
		t.Fatal("traceparent header not injected")
	}

	got := trace.SpanContextFromContext(ExtractHTTP(context.Background(), h))
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("trace id = %s, want %s", got.TraceID(), span.SpanContext().TraceID())
	}
}

// recordingTracer returns a Tracer whose spans land in the returned recorder.
func recordingTracer(debug bool) (*Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return &Tracer{tracer: tp.Tracer("test"), debug: debug}, rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestCompletionSpan(t *testing.T) {
	for _, debug := range []bool{false, true} {
		tr, rec := recordingTracer(debug)
		temp := 0.2
		_, span := tr.StartCompletionSpan(context.Background(), "groq")
		tr.EndCompletionSpan(span, CompletionSpanOptions{
			Model:       "llama-3.3-70b-versatile",
			StopReason:  "stop",
			Temperature: &temp,
			TokensIn:    120,
			TokensOut:   30,
			Prompt:      "Critique the answer",
			Reply:       `{"score": 7}`,
		}, nil)

		ended := rec.Ended()
		if len(ended) != 1 || ended[0].Name() != "llm.complete" {
			t.Fatalf("spans = %v", ended)
		}
		a := attrs(ended[0])
		if a["llm.provider"].AsString() != "groq" || a["llm.tokens.input"].AsInt64() != 120 || a["llm.temperature"].AsFloat64() != 0.2 {
			t.Errorf("attributes = %v", a)
		}
		if _, ok := a["llm.prompt"]; ok != debug {
			t.Errorf("debug=%v: prompt attached = %v", debug, ok)
		}
	}
}

func TestHopSpanRecordsError(t *testing.T) {
	tr, rec := recordingTracer(false)
	_, span := tr.StartHopSpan(context.Background(), "llm")
	tr.EndHopSpan(span, HopSpanOptions{Tag: "llm", Intent: "refine_low_score_response", Status: "error"}, errors.New("connection refused"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("spans = %d, want 1", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", ended[0].Status())
	}
	if attrs(ended[0])["hop.tag"].AsString() != "llm" {
		t.Errorf("attributes = %v", attrs(ended[0]))
	}
}

func TestGetTracerDefaultsToNoop(t *testing.T) {
	tr := GetTracer()
	ctx, span := tr.StartHopSpan(context.Background(), "critic")
	score := 7.0
	tr.EndHopSpan(span, HopSpanOptions{Tag: "critic", Intent: "evaluate_scraped_content", Score: &score}, nil)
	_, run := tr.StartRunSpan(ctx, "run-1")
	tr.EndRunSpan(run, "complete", 1, 4)
}

func TestExportConfig_Enabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if (ExportConfig{}).Enabled() {
		t.Error("no endpoint should be disabled")
	}
	if !(ExportConfig{Endpoint: "localhost:4317"}).Enabled() {
		t.Error("explicit endpoint should be enabled")
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	c := ExportConfig{}
	if !c.Enabled() || c.endpoint() != "collector:4318" {
		t.Errorf("env endpoint = %q", c.endpoint())
	}
}

func TestStart_UnknownProtocol(t *testing.T) {
	_, err := Start(context.Background(), ExportConfig{Endpoint: "localhost:4317", Protocol: "kafka"})
	if err == nil {
		t.Error("expected error for unknown protocol")
	}
}

func TestStart_InstallsAndRestoresTracer(t *testing.T) {
	exp, err := Start(context.Background(), ExportConfig{
		Service:  "refinery-critic",
		Endpoint: "127.0.0.1:1",
		Protocol: "http",
		Insecure: true,
	})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if GetTracer() == noopTracer {
		t.Error("Start should install a tracer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := exp.OnShutdown(ctx); err != nil {
		t.Errorf("OnShutdown error: %v", err)
	}
	if GetTracer() != noopTracer {
		t.Error("OnShutdown should restore the no-op tracer")
	}
}
