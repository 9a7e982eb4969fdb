package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/orchestrator"
	"github.com/vinayprograms/refinery/telemetry"
)

// Environment variables that override the file.
const (
	EnvRegistryURL = "REGISTRY_URL"
	EnvListen      = "REFINERY_LISTEN"
	EnvPublicURL   = "REFINERY_PUBLIC_URL"
	EnvLogLevel    = "REFINERY_LOG_LEVEL"
)

// Config is the refinery.toml file.
type Config struct {
	Registry  RegistryConfig     `toml:"registry"`
	Agent     AgentConfig        `toml:"agent"`
	Pipeline  PipelineConfig     `toml:"pipeline"`
	LLM       llm.ProviderConfig `toml:"llm"`
	Web       WebConfig          `toml:"web"`
	Telemetry TelemetryConfig    `toml:"telemetry"`
	Log       LogConfig          `toml:"log"`
}

// RegistryConfig locates the registry and configures it when served.
type RegistryConfig struct {
	// URL is where agents and clients reach the registry.
	URL string `toml:"url"`

	// Listen is the address the registry service binds.
	Listen string `toml:"listen"`

	// TTL drops entries not re-registered within it. Zero keeps them
	// forever.
	TTL time.Duration `toml:"ttl"`
}

// AgentConfig configures an agent process.
type AgentConfig struct {
	// Listen is the address the agent binds. Empty uses the role's port:
	// scraper 8001, critic 8002, refiner 8003.
	Listen string `toml:"listen"`

	// PublicURL is the base URL advertised in the descriptor. Defaults to
	// http://<Listen>.
	PublicURL string `toml:"public_url"`

	// Reregister is the self-registration period. Zero registers once.
	Reregister time.Duration `toml:"reregister"`
}

// PipelineConfig bounds the critique/refine cycle.
type PipelineConfig struct {
	MaxIterations  int           `toml:"max_iterations"`
	ScoreThreshold float64       `toml:"score_threshold"`
	HopTimeout     time.Duration `toml:"hop_timeout"`

	// ClientTimeout bounds a whole question asked from the CLI.
	ClientTimeout time.Duration `toml:"client_timeout"`

	CriticTag  string `toml:"critic_tag"`
	RefinerTag string `toml:"refiner_tag"`
}

// WebConfig configures the fetch collaborator.
type WebConfig struct {
	// Search is serpapi, brave, tavily, duckduckgo or auto (first service
	// with a key, else duckduckgo).
	Search string `toml:"search"`

	MaxResults int      `toml:"max_results"`
	Blocked    []string `toml:"blocked"`
	CacheSize  int      `toml:"cache_size"`

	// SearchPerMinute and PagesPerMinute pace outbound calls. Zero means
	// unpaced.
	SearchPerMinute int `toml:"search_per_minute"`
	PagesPerMinute  int `toml:"pages_per_minute"`

	// Summarize condenses fetched pages with the LLM before critique.
	Summarize bool `toml:"summarize"`

	// Screen skips pages that look like prompt injection.
	Screen bool `toml:"screen"`
}

// TelemetryConfig configures tracing and the run journal.
type TelemetryConfig struct {
	Endpoint string `toml:"endpoint"`
	Protocol string `toml:"protocol"`
	Insecure bool   `toml:"insecure"`
	Debug    bool   `toml:"debug"`

	// Journal is http, file or noop; JournalEndpoint is its URL or path.
	Journal         string `toml:"journal"`
	JournalEndpoint string `toml:"journal_endpoint"`
}

// LogConfig configures console logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the reference configuration: local registry on 8000,
// Groq for generation, two refine iterations and a threshold of 9.
func Default() *Config {
	p := orchestrator.DefaultConfig()
	return &Config{
		Registry: RegistryConfig{
			URL:    "http://localhost:8000",
			Listen: ":8000",
		},
		Pipeline: PipelineConfig{
			MaxIterations:  p.MaxIterations,
			ScoreThreshold: p.ScoreThreshold,
			HopTimeout:     p.HopTimeout,
			ClientTimeout:  300 * time.Second,
			CriticTag:      p.CriticTag,
			RefinerTag:     p.RefinerTag,
		},
		LLM: llm.ProviderConfig{
			Provider:  "groq",
			Model:     "llama-3.3-70b-versatile",
			MaxTokens: 2048,
		},
		Web: WebConfig{
			Search:          "auto",
			MaxResults:      10,
			CacheSize:       128,
			SearchPerMinute: 30,
			PagesPerMinute:  120,
			Screen:          true,
		},
		Telemetry: TelemetryConfig{
			Protocol: "grpc",
			Journal:  "noop",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRegistryURL); v != "" {
		c.Registry.URL = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Agent.Listen = v
	}
	if v := os.Getenv(EnvPublicURL); v != "" {
		c.Agent.PublicURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the settings that would otherwise fail later and far
// from the file.
func (c *Config) Validate() error {
	if c.Registry.URL == "" {
		return fmt.Errorf("registry.url is required")
	}
	if err := c.Orchestrator().Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	switch c.Web.Search {
	case "", "auto", "serpapi", "brave", "tavily", "duckduckgo":
	default:
		return fmt.Errorf("web.search: unknown service %q", c.Web.Search)
	}
	switch c.Telemetry.Journal {
	case "", "noop", "http", "file":
	default:
		return fmt.Errorf("telemetry.journal: unknown journal %q", c.Telemetry.Journal)
	}
	if (c.Telemetry.Journal == "http" || c.Telemetry.Journal == "file") && c.Telemetry.JournalEndpoint == "" {
		return fmt.Errorf("telemetry.journal_endpoint is required for %s journal", c.Telemetry.Journal)
	}
	return nil
}

// Orchestrator returns the engine settings. Logger and journal are left
// for the caller.
func (c *Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		MaxIterations:  c.Pipeline.MaxIterations,
		ScoreThreshold: c.Pipeline.ScoreThreshold,
		HopTimeout:     c.Pipeline.HopTimeout,
		CriticTag:      c.Pipeline.CriticTag,
		RefinerTag:     c.Pipeline.RefinerTag,
	}
}

// Tracing returns the span export settings for service.
func (c *Config) Tracing(service string) telemetry.ExportConfig {
	return telemetry.ExportConfig{
		Service:  service,
		Endpoint: c.Telemetry.Endpoint,
		Protocol: c.Telemetry.Protocol,
		Insecure: c.Telemetry.Insecure,
		Debug:    c.Telemetry.Debug,
	}
}

// AdvertisedURL is the base URL agents put in their descriptor.
func (c *Config) AdvertisedURL() string {
	if c.Agent.PublicURL != "" {
		return strings.TrimRight(c.Agent.PublicURL, "/")
	}
	host := c.Agent.Listen
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host
}
