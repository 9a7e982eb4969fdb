package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/orchestrator"
	"github.com/vinayprograms/refinery/pipeline"
)

// NoteNoContent is attached to replies when no page could be used.
const NoteNoContent = "No valid content found."

// ContentFetcher retrieves readable content for a question.
// *web.Fetcher satisfies it.
type ContentFetcher interface {
	Fetch(ctx context.Context, query string) (string, error)
}

// ScraperConfig configures a Scraper.
type ScraperConfig struct {
	Fetcher ContentFetcher

	// Summarizer, when set, condenses the fetched page around the question.
	Summarizer *llm.Summarizer

	// Engine runs the critique/refine cycle on the scraped answer. Without
	// one the scraper replies with the entry envelope's answer.
	Engine *orchestrator.Engine

	Logger *logging.Logger
}

// Scraper is the producer: it answers a question from the web and hands
// the answer to the critique/refine cycle.
type Scraper struct {
	fetcher    ContentFetcher
	summarizer *llm.Summarizer
	engine     *orchestrator.Engine
	logger     *logging.Logger
}

// NewScraper creates a scraper.
func NewScraper(cfg ScraperConfig) (*Scraper, error) {
	if cfg.Fetcher == nil {
		return nil, errors.InvalidInput("scraper needs a fetcher")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Scraper{
		fetcher:    cfg.Fetcher,
		summarizer: cfg.Summarizer,
		engine:     cfg.Engine,
		logger:     logger.WithComponent("scraper"),
	}, nil
}

// Tag implements Capability.
func (s *Scraper) Tag() string { return TagScraper }

// Produce fetches content for env's question and returns the entry
// envelope: the scraper's step appended, answer set, phase scraped and
// iterations zero. On failure the returned envelope carries an error step.
func (s *Scraper) Produce(ctx context.Context, env pipeline.Envelope) (pipeline.Envelope, error) {
	question := strings.TrimSpace(env.Input)
	if question == "" {
		return env, errors.InvalidInput("question is empty")
	}
	s.logger.Info("scraping", map[string]interface{}{"question": question})

	content, err := s.fetcher.Fetch(ctx, question)
	if err != nil {
		s.logger.Warn("no_content", map[string]interface{}{"error": err.Error()})
		return env.WithStep(pipeline.StepRecord{
			Tool:    TagScraper,
			Status:  pipeline.StatusError,
			Phase:   pipeline.PhaseScraped,
			Content: err.Error(),
			Error:   err.Error(),
		}), err
	}

	answer := s.summarize(ctx, question, content)
	out := env.WithStep(pipeline.StepRecord{
		Tool:    TagScraper,
		Status:  pipeline.StatusOK,
		Phase:   pipeline.PhaseScraped,
		Content: content,
	})
	return out.WithContext(pipeline.Context{
		Answer: answer,
		Phase:  pipeline.PhaseScraped,
	}), nil
}

// summarize condenses content when a summarizer is configured, keeping the
// "Source:" line. Any failure falls back to the raw content.
func (s *Scraper) summarize(ctx context.Context, question, content string) string {
	if s.summarizer == nil {
		return content
	}
	source, body := "", content
	if strings.HasPrefix(content, "Source: ") {
		if i := strings.Index(content, "\n\n"); i >= 0 {
			source, body = content[:i], content[i+2:]
		}
	}
	summary, err := s.summarizer.Summarize(ctx, body, question)
	if err != nil {
		s.logger.Warn("summarize_failed", map[string]interface{}{"error": err.Error()})
		return content
	}
	if source == "" {
		return summary
	}
	return source + "\n\n" + summary
}

// Run implements Capability: produce, then run the critique/refine cycle.
func (s *Scraper) Run(ctx context.Context, env pipeline.Envelope) (pipeline.Reply, error) {
	if env.RunID == "" {
		env.RunID = uuid.NewString()
	}
	entry, err := s.Produce(ctx, env)
	if errors.Is(err, errors.ErrCodeInvalidInput) {
		return pipeline.Reply{}, err
	}
	if err != nil {
		return pipeline.Reply{
			Status: pipeline.StatusError,
			Phase:  pipeline.PhaseScraped,
			Answer: err.Error(),
			Trace:  entry.Trace,
			Note:   NoteNoContent,
			Error:  err.Error(),
			RunID:  entry.RunID,
		}, nil
	}

	if s.engine == nil {
		v := entry.View()
		return pipeline.Reply{
			Status: pipeline.StatusOK,
			Phase:  pipeline.PhaseScraped,
			Answer: v.Answer,
			Trace:  entry.Trace,
			RunID:  entry.RunID,
		}, nil
	}
	return s.engine.Run(ctx, entry), nil
}
