package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refinery.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Pipeline.MaxIterations != 2 || cfg.Pipeline.ScoreThreshold != 9 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.HopTimeout != 60*time.Second || cfg.Pipeline.ClientTimeout != 300*time.Second {
		t.Errorf("timeouts = %s / %s", cfg.Pipeline.HopTimeout, cfg.Pipeline.ClientTimeout)
	}
	if cfg.LLM.Provider != "groq" {
		t.Errorf("llm provider = %q, want groq", cfg.LLM.Provider)
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvRegistryURL, "")
	path := writeConfig(t, `
[registry]
url = "http://registry:9000"
ttl = "5m"

[pipeline]
max_iterations = 3
score_threshold = 8.5
hop_timeout = "30s"

[llm]
provider = "anthropic"
model = "claude-sonnet-4-20250514"

[web]
search = "duckduckgo"
blocked = ["pinterest.com"]
summarize = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Registry.URL != "http://registry:9000" || cfg.Registry.TTL != 5*time.Minute {
		t.Errorf("registry = %+v", cfg.Registry)
	}
	oc := cfg.Orchestrator()
	if oc.MaxIterations != 3 || oc.ScoreThreshold != 8.5 || oc.HopTimeout != 30*time.Second {
		t.Errorf("orchestrator = %+v", oc)
	}
	if oc.CriticTag != "critic" || oc.RefinerTag != "llm" {
		t.Errorf("tags should keep defaults, got %q/%q", oc.CriticTag, oc.RefinerTag)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.MaxTokens != 2048 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if !cfg.Web.Summarize || len(cfg.Web.Blocked) != 1 || cfg.Web.MaxResults != 10 {
		t.Errorf("web = %+v", cfg.Web)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Setenv(EnvRegistryURL, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Registry.URL != Default().Registry.URL {
		t.Errorf("registry url = %q", cfg.Registry.URL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvRegistryURL, "http://env-registry:8000")
	t.Setenv(EnvListen, ":9100")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(writeConfig(t, "[registry]\nurl = \"http://file:8000\"\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Registry.URL != "http://env-registry:8000" {
		t.Errorf("registry url = %q, env should win", cfg.Registry.URL)
	}
	if cfg.Agent.Listen != ":9100" || cfg.Log.Level != "debug" {
		t.Errorf("agent listen = %q, log level = %q", cfg.Agent.Listen, cfg.Log.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvRegistryURL, "")
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[pipeline]\nmax_iter = 2\n", "unknown keys"},
		{"bad toml", "[pipeline\n", "load config"},
		{"negative iterations", "[pipeline]\nmax_iterations = -1\n", "pipeline"},
		{"unknown search", "[web]\nsearch = \"bing\"\n", "web.search"},
		{"journal without endpoint", "[telemetry]\njournal = \"file\"\n", "journal_endpoint"},
		{"unknown journal", "[telemetry]\njournal = \"kafka\"\n", "telemetry.journal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAdvertisedURL(t *testing.T) {
	tests := []struct {
		listen, public, want string
	}{
		{":8002", "", "http://localhost:8002"},
		{"10.0.0.5:8002", "", "http://10.0.0.5:8002"},
		{":8002", "https://critic.example.com/", "https://critic.example.com"},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Agent.Listen = tt.listen
		cfg.Agent.PublicURL = tt.public
		if got := cfg.AdvertisedURL(); got != tt.want {
			t.Errorf("AdvertisedURL(%q, %q) = %q, want %q", tt.listen, tt.public, got, tt.want)
		}
	}
}

func TestTracing(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Endpoint = "localhost:4317"
	tc := cfg.Tracing("critic")
	if tc.Service != "critic" || tc.Endpoint != "localhost:4317" || tc.Protocol != "grpc" {
		t.Errorf("tracing = %+v", tc)
	}
}
