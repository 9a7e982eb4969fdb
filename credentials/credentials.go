// Package credentials loads API keys for LLM providers and search services.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when credentials file has overly permissive permissions.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// Credentials holds the keys read from credentials.toml. Each section is
// named after a provider or search service and holds an api_key:
//
//	[groq]
//	api_key = "gsk_..."
//
//	[serpapi]
//	api_key = "..."
//
// A [llm] section is the fallback for any LLM provider without its own
// section. It is never used for search services.
type Credentials struct {
	LLM *ProviderCreds `toml:"llm"`

	sections map[string]*ProviderCreds
}

// ProviderCreds holds credentials for a single provider
type ProviderCreds struct {
	APIKey string `toml:"api_key"`
}

// Search services whose keys are looked up with SearchKey.
const (
	SerpAPI = "serpapi"
	Brave   = "brave"
	Tavily  = "tavily"
)

// StandardPaths returns the standard credential file locations in order of priority
func StandardPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "refinery", "credentials.toml"),
			filepath.Join(home, ".refinery", "credentials.toml"))
	}
	return paths
}

// Load loads credentials from the first available standard location.
// No file is not an error: keys then come from the environment.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file.
// Returns ErrInsecurePermissions if the file is not 0400.
func LoadFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		mode := info.Mode().Perm()
		if mode != 0400 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must be 0400)",
				ErrInsecurePermissions, path, mode)
		}
	}

	// Sections are open-ended, so decode into a map first.
	var rawData map[string]interface{}
	if _, err := toml.DecodeFile(path, &rawData); err != nil {
		return nil, err
	}

	creds := &Credentials{sections: make(map[string]*ProviderCreds)}
	for key, value := range rawData {
		section, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		apiKey, _ := section["api_key"].(string)
		if apiKey == "" {
			continue
		}
		if key == "llm" {
			creds.LLM = &ProviderCreds{APIKey: apiKey}
		} else {
			creds.sections[key] = &ProviderCreds{APIKey: apiKey}
		}
	}
	return creds, nil
}

// section returns the key stored under name or its dashless form.
func (c *Credentials) section(name string) string {
	if c == nil {
		return ""
	}
	if s, ok := c.sections[name]; ok && s.APIKey != "" {
		return s.APIKey
	}
	normalized := strings.ToLower(strings.ReplaceAll(name, "-", ""))
	if s, ok := c.sections[normalized]; ok && s.APIKey != "" {
		return s.APIKey
	}
	return ""
}

// GetAPIKey returns the API key for an LLM provider.
// Priority: [provider] section > [llm] section > environment variable
func (c *Credentials) GetAPIKey(provider string) string {
	if key := c.section(provider); key != "" {
		return key
	}
	if c != nil && c.LLM != nil && c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	return os.Getenv(envVarForProvider(provider))
}

// SearchKey returns the key for a search service: its section, else its
// environment variable.
func (c *Credentials) SearchKey(service string) string {
	if key := c.section(service); key != "" {
		return key
	}
	return os.Getenv(envVarForProvider(service))
}

// envVarForProvider returns the environment variable name for a provider.
func envVarForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai", "openai-compat":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case SerpAPI:
		return "SERP_API_KEY"
	case Brave:
		return "BRAVE_API_KEY"
	case Tavily:
		return "TAVILY_API_KEY"
	default:
		return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
	}
}
