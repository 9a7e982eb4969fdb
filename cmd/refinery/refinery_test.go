package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/refinery/agent"
	"github.com/vinayprograms/refinery/config"
	"github.com/vinayprograms/refinery/credentials"
	"github.com/vinayprograms/refinery/discovery"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/registry"
)

type fixedFetcher string

func (f fixedFetcher) Fetch(ctx context.Context, query string) (string, error) {
	return string(f), nil
}

// startRegistry serves a fresh registry and points REGISTRY_URL at it.
func startRegistry(t *testing.T) *discovery.Client {
	t.Helper()
	t.Chdir(t.TempDir())
	reg := registry.NewMemoryRegistry(registry.MemoryConfig{})
	ts := httptest.NewServer(registry.NewServer("", reg, logging.Nop()).Handler())
	t.Cleanup(func() {
		ts.Close()
		reg.Close()
	})
	t.Setenv(config.EnvRegistryURL, ts.URL)
	return discovery.New(discovery.Config{RegistryURL: ts.URL, Timeout: 2 * time.Second, Logger: logging.Nop()})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	client := startRegistry(t)
	if err := client.RegisterSelf(context.Background(), agent.CriticDescriptor("http://localhost:8002")); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := execute(t, "list", "--plain")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "critic-tool\t1.0.0\tcritic\thttp://localhost:8002/a2a") {
		t.Errorf("output = %q", out)
	}
}

func TestAsk(t *testing.T) {
	client := startRegistry(t)

	scraper, err := agent.NewScraper(agent.ScraperConfig{
		Fetcher: fixedFetcher("Source: https://go.dev\n\nGo is a programming language."),
		Logger:  logging.Nop(),
	})
	if err != nil {
		t.Fatalf("NewScraper: %v", err)
	}
	ts := httptest.NewServer(agent.NewServer("", scraper, registry.Descriptor{}, logging.Nop()).Handler())
	defer ts.Close()
	if err := client.RegisterSelf(context.Background(), agent.ScraperDescriptor(ts.URL)); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := execute(t, "ask", "--plain", "What", "is", "Go?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	for _, want := range []string{"Question: What is Go?", "Go is a programming language.", "Status: ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAsk_NoEntryAgent(t *testing.T) {
	startRegistry(t)
	if _, err := execute(t, "ask", "anything"); err == nil {
		t.Error("expected error when no entry agent is registered")
	}
}

func TestMissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := execute(t, "--config", "nope.toml", "list"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSearchKeys(t *testing.T) {
	t.Setenv("SERP_API_KEY", "serp")
	t.Setenv("BRAVE_API_KEY", "")
	t.Setenv("TAVILY_API_KEY", "")

	tests := []struct {
		service string
		want    string
		wantErr bool
	}{
		{"auto", "serp", false},
		{"serpapi", "serp", false},
		{"duckduckgo", "", false},
		{"brave", "", true},
		{"bing", "", true},
	}
	for _, tt := range tests {
		keys, err := searchKeys(tt.service, &credentials.Credentials{})
		if (err != nil) != tt.wantErr {
			t.Errorf("searchKeys(%q) err = %v, wantErr %v", tt.service, err, tt.wantErr)
			continue
		}
		if keys.SerpAPI != tt.want {
			t.Errorf("searchKeys(%q).SerpAPI = %q, want %q", tt.service, keys.SerpAPI, tt.want)
		}
	}
}

func TestRoles(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range roles {
		d := r.descriptor("http://localhost" + r.listen)
		if err := registry.Validate(d); err != nil {
			t.Errorf("%s descriptor invalid: %v", r.use, err)
		}
		if seen[r.listen] {
			t.Errorf("%s reuses port %s", r.use, r.listen)
		}
		seen[r.listen] = true
	}
	if len(roles) != 3 {
		t.Errorf("roles = %d, want 3", len(roles))
	}
}
