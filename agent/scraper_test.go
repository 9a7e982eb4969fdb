package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/orchestrator"
	"github.com/vinayprograms/refinery/pipeline"
	"github.com/vinayprograms/refinery/web"
)

type stubFetcher struct {
	content string
	err     error
	queries []string
}

func (f *stubFetcher) Fetch(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.content, f.err
}

const page = "Source: https://go.dev/doc\n\nGoroutines are lightweight threads managed by the Go runtime."

func newTestScraper(t *testing.T, f ContentFetcher, engine *orchestrator.Engine) *Scraper {
	t.Helper()
	s, err := NewScraper(ScraperConfig{Fetcher: f, Engine: engine, Logger: logging.Nop()})
	if err != nil {
		t.Fatalf("NewScraper: %v", err)
	}
	return s
}

func engineCfg() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.Logger = logging.Nop()
	return cfg
}

func TestScraper_Produce(t *testing.T) {
	f := &stubFetcher{content: page}
	s := newTestScraper(t, f, nil)

	env, err := s.Produce(context.Background(), pipeline.New("  What is a goroutine? "))
	if err != nil {
		t.Fatalf("Produce error: %v", err)
	}
	if f.queries[0] != "What is a goroutine?" {
		t.Errorf("query = %q", f.queries[0])
	}
	v := env.View()
	if v.Answer != page || v.Phase != pipeline.PhaseScraped || v.Iterations != 0 {
		t.Errorf("context = %+v", v)
	}
	if len(env.Trace) != 1 {
		t.Fatalf("trace length = %d, want 1", len(env.Trace))
	}
	if rec := env.Trace[0]; rec.Tool != "scraper" || rec.Status != pipeline.StatusOK || rec.Content != page {
		t.Errorf("record = %+v", rec)
	}
}

func TestScraper_NoContent(t *testing.T) {
	s := newTestScraper(t, &stubFetcher{err: web.ErrNoContent}, nil)

	reply, err := s.Run(context.Background(), pipeline.New("obscure question"))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if reply.Status != pipeline.StatusError {
		t.Errorf("Status = %q, want error", reply.Status)
	}
	if reply.Note != NoteNoContent {
		t.Errorf("Note = %q", reply.Note)
	}
	if len(reply.Trace) != 1 || reply.Trace[0].Status != pipeline.StatusError {
		t.Errorf("trace = %+v", reply.Trace)
	}
}

func TestScraper_EmptyQuestion(t *testing.T) {
	s := newTestScraper(t, &stubFetcher{content: page}, nil)
	_, err := s.Run(context.Background(), pipeline.New(""))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestScraper_WithoutEngine(t *testing.T) {
	s := newTestScraper(t, &stubFetcher{content: page}, nil)
	env := pipeline.New("q")
	env.RunID = ""

	reply, err := s.Run(context.Background(), env)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if reply.Status != pipeline.StatusOK || reply.Answer != page {
		t.Errorf("reply = %+v", reply)
	}
	if reply.RunID == "" {
		t.Error("run ID should be assigned")
	}
}

func TestScraper_NoCriticRegistered(t *testing.T) {
	engine := orchestrator.New(orchestrator.NewLocalHop(), engineCfg())
	s := newTestScraper(t, &stubFetcher{content: page}, engine)

	reply, err := s.Run(context.Background(), pipeline.New("q"))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if reply.Status != pipeline.StatusOK || reply.Phase != pipeline.PhaseScraped {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Note != "No critic found" {
		t.Errorf("Note = %q", reply.Note)
	}
	if len(reply.Trace) != 1 {
		t.Errorf("trace length = %d, want 1", len(reply.Trace))
	}
}

func TestScraper_FullCycle(t *testing.T) {
	criticLLM := llm.NewMockProvider()
	criticLLM.QueueResponses(
		`{"score": 5, "feedback": "Explain scheduling."}`,
		`{"score": 9, "feedback": "Good."}`,
	)
	refinerLLM := llm.NewMockProvider()
	refinerLLM.SetResponse("Goroutines are multiplexed onto OS threads by the scheduler.")

	hop := orchestrator.NewLocalHop()
	hop.Add(TagCritic, NewCritic(criticLLM, logging.Nop()))
	hop.Add(TagRefiner, NewRefiner(refinerLLM, logging.Nop()))
	s := newTestScraper(t, &stubFetcher{content: page}, orchestrator.New(hop, engineCfg()))

	reply, err := s.Run(context.Background(), pipeline.New("What is a goroutine?"))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if reply.Status != pipeline.StatusComplete {
		t.Fatalf("Status = %q, want complete (%+v)", reply.Status, reply)
	}
	if reply.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", reply.Iterations)
	}
	if !strings.Contains(reply.Answer, "scheduler") {
		t.Errorf("Answer = %q, want refined answer", reply.Answer)
	}
	var tools []string
	for _, s := range reply.Trace {
		tools = append(tools, s.Tool)
	}
	if got := strings.Join(tools, ","); got != "scraper,critic,llm,critic" {
		t.Errorf("trace tools = %s", got)
	}
	if criticLLM.CallCount() != 2 || refinerLLM.CallCount() != 1 {
		t.Errorf("calls: critic=%d refiner=%d", criticLLM.CallCount(), refinerLLM.CallCount())
	}
}

func TestScraper_RefinerFailureReturnsToCritic(t *testing.T) {
	criticLLM := llm.NewMockProvider()
	criticLLM.QueueResponses(
		`{"score": 5, "feedback": "Explain scheduling."}`,
		`{"score": 9, "feedback": "Fine as is."}`,
	)
	refinerLLM := llm.NewMockProvider()
	refinerLLM.SetError(errors.New(errors.ErrCodeUnavailable, "model overloaded"))

	hop := orchestrator.NewLocalHop()
	hop.Add(TagCritic, NewCritic(criticLLM, logging.Nop()))
	hop.Add(TagRefiner, NewRefiner(refinerLLM, logging.Nop()))
	s := newTestScraper(t, &stubFetcher{content: page}, orchestrator.New(hop, engineCfg()))

	reply, err := s.Run(context.Background(), pipeline.New("What is a goroutine?"))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if reply.Status != pipeline.StatusComplete {
		t.Fatalf("Status = %q, want complete (%+v)", reply.Status, reply)
	}
	if reply.Answer != page {
		t.Errorf("Answer = %q, want the scraped page", reply.Answer)
	}
	if reply.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", reply.Iterations)
	}
	if criticLLM.CallCount() != 2 {
		t.Errorf("critic calls = %d, want 2", criticLLM.CallCount())
	}
	if len(reply.Trace) != 4 {
		t.Fatalf("trace length = %d, want 4", len(reply.Trace))
	}
	if rec := reply.Trace[2]; rec.Tool != TagRefiner || rec.Status != pipeline.StatusError {
		t.Errorf("refiner record = %+v", rec)
	}
}

func TestScraper_NonFiniteScoreNeverRefines(t *testing.T) {
	criticLLM := llm.NewMockProvider()
	criticLLM.SetResponse(`{"score": "NaN", "feedback": "?"}`)
	refinerLLM := llm.NewMockProvider()
	refinerLLM.SetResponse("unused")

	hop := orchestrator.NewLocalHop()
	hop.Add(TagCritic, NewCritic(criticLLM, logging.Nop()))
	hop.Add(TagRefiner, NewRefiner(refinerLLM, logging.Nop()))
	s := newTestScraper(t, &stubFetcher{content: page}, orchestrator.New(hop, engineCfg()))

	reply, err := s.Run(context.Background(), pipeline.New("What is a goroutine?"))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if reply.Status != pipeline.StatusError {
		t.Errorf("Status = %q, want error", reply.Status)
	}
	if refinerLLM.CallCount() != 0 {
		t.Errorf("refiner calls = %d, want 0", refinerLLM.CallCount())
	}
	last, _ := reply.LastStep()
	if last.Tool != TagCritic || last.Feedback != FeedbackInvalid {
		t.Errorf("last record = %+v", last)
	}
}

func TestScraper_Summarizes(t *testing.T) {
	summaryLLM := llm.NewMockProvider()
	summaryLLM.SetResponse("A goroutine is a lightweight thread.")

	s, err := NewScraper(ScraperConfig{
		Fetcher:    &stubFetcher{content: page},
		Summarizer: llm.NewSummarizer(summaryLLM),
		Logger:     logging.Nop(),
	})
	if err != nil {
		t.Fatalf("NewScraper: %v", err)
	}

	env, err := s.Produce(context.Background(), pipeline.New("What is a goroutine?"))
	if err != nil {
		t.Fatalf("Produce error: %v", err)
	}
	want := "Source: https://go.dev/doc\n\nA goroutine is a lightweight thread."
	if got := env.View().Answer; got != want {
		t.Errorf("Answer = %q, want %q", got, want)
	}
	if env.Trace[0].Content != page {
		t.Error("trace should keep the raw page")
	}
}

func TestScraper_SummaryFailureKeepsPage(t *testing.T) {
	summaryLLM := llm.NewMockProvider()
	summaryLLM.SetResponse("")

	s, _ := NewScraper(ScraperConfig{
		Fetcher:    &stubFetcher{content: page},
		Summarizer: llm.NewSummarizer(summaryLLM),
		Logger:     logging.Nop(),
	})
	env, err := s.Produce(context.Background(), pipeline.New("q"))
	if err != nil {
		t.Fatalf("Produce error: %v", err)
	}
	if env.View().Answer != page {
		t.Errorf("Answer = %q, want raw page", env.View().Answer)
	}
}

func TestNewScraper_RequiresFetcher(t *testing.T) {
	if _, err := NewScraper(ScraperConfig{}); err == nil {
		t.Error("expected error without fetcher")
	}
}
