package orchestrator

import (
	"fmt"
	"time"

	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/telemetry"
)

// Config bounds a critique/refine run.
type Config struct {
	// MaxIterations is the most refine hops a run may make. Default 2.
	MaxIterations int

	// ScoreThreshold ends the run once a critique scores at least this.
	// Default 9.
	ScoreThreshold float64

	// HopTimeout bounds each hop. Default 60s.
	HopTimeout time.Duration

	// CriticTag and RefinerTag name the agents to hop to.
	CriticTag  string
	RefinerTag string

	Logger  *logging.Logger
	Journal telemetry.Journal
}

// DefaultConfig returns the reference bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  2,
		ScoreThreshold: 9,
		HopTimeout:     60 * time.Second,
		CriticTag:      "critic",
		RefinerTag:     "llm",
	}
}

// Validate checks the bounds.
func (c Config) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("max iterations must not be negative, got %d", c.MaxIterations)
	}
	if c.HopTimeout < 0 {
		return fmt.Errorf("hop timeout must not be negative, got %s", c.HopTimeout)
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxIterations < 0 {
		c.MaxIterations = 0
	}
	if c.HopTimeout <= 0 {
		c.HopTimeout = def.HopTimeout
	}
	if c.CriticTag == "" {
		c.CriticTag = def.CriticTag
	}
	if c.RefinerTag == "" {
		c.RefinerTag = def.RefinerTag
	}
	if c.Logger == nil {
		c.Logger = logging.New()
	}
	if c.Journal == nil {
		c.Journal = telemetry.NewNoopJournal()
	}
	return c
}
