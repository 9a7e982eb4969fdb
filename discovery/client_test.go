package discovery

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/registry"
)

func newRegistry(t *testing.T) (*httptest.Server, *registry.MemoryRegistry) {
	t.Helper()
	reg := registry.NewMemoryRegistry(registry.MemoryConfig{})
	ts := httptest.NewServer(registry.NewServer("", reg, logging.Nop()).Handler())
	t.Cleanup(func() {
		ts.Close()
		reg.Close()
	})
	return ts, reg
}

func newClient(url string) *Client {
	return New(Config{RegistryURL: url, Timeout: 2 * time.Second, Logger: logging.Nop()})
}

func refinerDescriptor() registry.Descriptor {
	return registry.Descriptor{
		ID:        "llm-refiner",
		Name:      "LLM Refiner",
		Tags:      []string{"llm"},
		Endpoints: map[string]string{"a2a": "http://localhost:8003/a2a"},
	}
}

func TestClient_RegisterThenResolve(t *testing.T) {
	ts, _ := newRegistry(t)
	c := newClient(ts.URL)
	ctx := context.Background()

	if err := c.RegisterSelf(ctx, refinerDescriptor()); err != nil {
		t.Fatalf("RegisterSelf error: %v", err)
	}

	ep, ok := c.Resolve(ctx, "llm")
	if !ok {
		t.Fatal("Resolve(llm) not ok")
	}
	if ep != "http://localhost:8003/a2a" {
		t.Errorf("endpoint = %q", ep)
	}
}

func TestClient_ResolveUnknown(t *testing.T) {
	ts, _ := newRegistry(t)
	c := newClient(ts.URL)

	ep, ok := c.Resolve(context.Background(), "critic")
	if ok || ep != "" {
		t.Errorf("Resolve = (%q, %v), want (\"\", false)", ep, ok)
	}

	_, err := c.Lookup(context.Background(), "critic")
	if !errors.Is(err, errors.ErrCodeCapabilityMissing) {
		t.Errorf("Lookup err code = %v", errors.Code(err))
	}
	if !stderrors.Is(err, registry.ErrNotFound) {
		t.Error("Lookup error should wrap registry.ErrNotFound")
	}
}

func TestClient_ResolveMissingEndpoint(t *testing.T) {
	ts, reg := newRegistry(t)
	reg.Register(registry.Descriptor{ID: "x", Tags: []string{"entry"}, Endpoints: map[string]string{"ask": "http://h/ask"}})
	c := newClient(ts.URL)

	if _, ok := c.Resolve(context.Background(), "entry"); ok {
		t.Error("descriptor without a2a should not resolve")
	}
	ep, ok := c.ResolveEndpoint(context.Background(), "entry", "ask")
	if !ok || ep != "http://h/ask" {
		t.Errorf("ResolveEndpoint(ask) = (%q, %v)", ep, ok)
	}
}

func TestClient_RegistryUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := newClient(url)
	ctx := context.Background()

	if _, ok := c.Resolve(ctx, "critic"); ok {
		t.Error("Resolve should report not-ok when registry is down")
	}

	err := c.RegisterSelf(ctx, refinerDescriptor())
	if !errors.Is(err, errors.ErrCodeRegistrationFailed) {
		t.Errorf("RegisterSelf err = %v, want REGISTRATION_FAILED", err)
	}

	if _, err := c.List(ctx); err == nil {
		t.Error("List should fail when registry is down")
	}
}

func TestClient_RegistryReturnsGarbage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer ts.Close()

	c := newClient(ts.URL)
	if _, ok := c.Resolve(context.Background(), "critic"); ok {
		t.Error("non-JSON resolve should not be ok")
	}
	if _, err := c.Register(context.Background(), refinerDescriptor()); err == nil {
		t.Error("non-JSON register response should fail")
	}
}

func TestClient_RegisterRejected(t *testing.T) {
	ts, _ := newRegistry(t)
	c := newClient(ts.URL)

	_, err := c.Register(context.Background(), registry.Descriptor{ID: "no-tags"})
	if !errors.Is(err, errors.ErrCodeRegistrationFailed) {
		t.Errorf("err = %v", err)
	}
}

func TestClient_List(t *testing.T) {
	ts, reg := newRegistry(t)
	reg.Register(refinerDescriptor())
	reg.Register(registry.Descriptor{ID: "critic-tool", Tags: []string{"critic"}})

	list, err := newClient(ts.URL).List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	c := newClient("http://localhost:8000/")
	if c.RegistryURL() != "http://localhost:8000" {
		t.Errorf("RegistryURL = %q", c.RegistryURL())
	}
}
