package agent

import (
	"context"
	"strings"

	"github.com/vinayprograms/refinery/pipeline"
	"github.com/vinayprograms/refinery/registry"
)

// Tags the built-in agents answer to.
const (
	TagScraper = "scraper"
	TagEntry   = "entry"
	TagCritic  = "critic"
	TagRefiner = "llm"
)

// Capability is one agent's behaviour behind a tag. Run receives a private
// copy of the envelope and returns a reply whose trace is the received
// trace plus the agent's own records.
//
// Problems the pipeline should see (bad model output, failed generation)
// are reported inside the reply with status error. A returned error means
// the envelope could not be handled at all.
type Capability interface {
	Tag() string
	Run(ctx context.Context, env pipeline.Envelope) (pipeline.Reply, error)
}

// ScraperDescriptor describes a scraper reachable at baseURL. The scraper
// also answers to the entry tag used by clients asking questions.
func ScraperDescriptor(baseURL string) registry.Descriptor {
	d := descriptor("scraper-tool", "Scraper Tool",
		"Searches the web and returns readable content", baseURL, TagScraper, TagEntry)
	d.Endpoints["ask"] = endpoint(baseURL, "/ask")
	return d
}

// CriticDescriptor describes a critic reachable at baseURL.
func CriticDescriptor(baseURL string) registry.Descriptor {
	return descriptor("critic-tool", "Critic Tool",
		"Provides feedback and scoring for scraped answers", baseURL, TagCritic)
}

// RefinerDescriptor describes a refiner reachable at baseURL.
func RefinerDescriptor(baseURL string) registry.Descriptor {
	return descriptor("llm-refiner", "LLM Refiner",
		"Improves answers based on critic feedback", baseURL, TagRefiner)
}

func descriptor(id, name, description, baseURL string, tags ...string) registry.Descriptor {
	return registry.Descriptor{
		ID:          id,
		Name:        name,
		Version:     "1.0.0",
		Description: description,
		Tags:        tags,
		Endpoints:   map[string]string{"a2a": endpoint(baseURL, "/a2a")},
		Auth:        map[string]any{"type": "none"},
	}
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
