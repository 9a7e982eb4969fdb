package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/registry"
)

// DefaultEndpoint is the endpoint key hops are sent to.
const DefaultEndpoint = "a2a"

// Config configures a discovery client.
type Config struct {
	// RegistryURL is the registry base URL, e.g. http://localhost:8000.
	RegistryURL string

	// Timeout bounds each registry call. Default 10s.
	Timeout time.Duration

	// HTTPClient overrides the client used for registry calls.
	HTTPClient *http.Client

	Logger *logging.Logger
}

// DefaultConfig returns a config pointing at a local registry.
func DefaultConfig() Config {
	return Config{
		RegistryURL: "http://localhost:8000",
		Timeout:     10 * time.Second,
	}
}

// Client talks to a registry over HTTP.
type Client struct {
	base   string
	http   *http.Client
	logger *logging.Logger
}

// New creates a discovery client.
func New(cfg Config) *Client {
	if cfg.RegistryURL == "" {
		cfg.RegistryURL = DefaultConfig().RegistryURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Client{
		base:   strings.TrimRight(cfg.RegistryURL, "/"),
		http:   hc,
		logger: logger.WithComponent("discovery"),
	}
}

// RegistryURL returns the registry base URL.
func (c *Client) RegistryURL() string {
	return c.base
}

// Register posts d to the registry and returns the tags it stored.
func (c *Client) Register(ctx context.Context, d registry.Descriptor) ([]string, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, errors.RegistrationFailure(c.base, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/register", bytes.NewReader(body))
	if err != nil {
		return nil, errors.RegistrationFailure(c.base, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.RegistrationFailure(c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.RegistrationFailure(c.base, statusError(resp))
	}

	var out registry.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.RegistrationFailure(c.base, err)
	}
	return out.Tags, nil
}

// RegisterSelf registers d and logs the outcome. A failure is returned for
// the caller to inspect, but agents keep serving without registration.
func (c *Client) RegisterSelf(ctx context.Context, d registry.Descriptor) error {
	tags, err := c.Register(ctx, d)
	if err != nil {
		c.logger.RegistrationFailed(c.base, err)
		return err
	}
	c.logger.Registered(d.ID, tags)
	return nil
}

// Lookup resolves tag to a descriptor.
// Unknown tags yield a CAPABILITY_MISSING error wrapping registry.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, tag string) (registry.Descriptor, error) {
	u := c.base + "/resolve?tag=" + url.QueryEscape(tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return registry.Descriptor{}, errors.ResolutionFailure(tag, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return registry.Descriptor{}, errors.ResolutionFailure(tag, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return registry.Descriptor{}, errors.ResolutionFailure(tag, registry.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return registry.Descriptor{}, errors.ResolutionFailure(tag, statusError(resp))
	}

	var d registry.Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return registry.Descriptor{}, errors.ResolutionFailure(tag, err)
	}
	return d, nil
}

// Resolve returns the a2a endpoint registered for tag. It never fails
// loudly: any problem reaching the registry, an unknown tag or a descriptor
// without the endpoint all yield ok=false.
func (c *Client) Resolve(ctx context.Context, tag string) (string, bool) {
	return c.ResolveEndpoint(ctx, tag, DefaultEndpoint)
}

// ResolveEndpoint is Resolve for an arbitrary endpoint key such as "ask".
func (c *Client) ResolveEndpoint(ctx context.Context, tag, op string) (string, bool) {
	d, err := c.Lookup(ctx, tag)
	if err != nil {
		c.logger.ResolveMiss(tag, err)
		return "", false
	}
	ep := d.Endpoint(op)
	if ep == "" {
		c.logger.ResolveMiss(tag, fmt.Errorf("descriptor %s has no %q endpoint", d.ID, op))
		return "", false
	}
	return ep, true
}

// List returns every registered descriptor, one per tag.
func (c *Client) List(ctx context.Context) ([]registry.Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/list", nil)
	if err != nil {
		return nil, errors.Wrap(err, "list agents")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "list agents")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapWithCode(statusError(resp), errors.ErrCodeUnavailable, "list agents")
	}

	var out []registry.Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeMalformedResponse, "list agents")
	}
	return out, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var e registry.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Detail != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Detail)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
