// Package registry maps capability tags to agent descriptors.
//
// # Overview
//
// Agents register a Descriptor naming the tags they answer to ("critic",
// "llm", "scraper") and their endpoints. Any agent can then resolve a tag to
// the descriptor most recently registered under it. There is no load
// balancing and no merge: a later registration for a tag replaces the earlier
// one, whichever agent it came from.
//
// # Basic Usage
//
//	reg := registry.NewMemoryRegistry(registry.MemoryConfig{})
//	tags, err := reg.Register(registry.Descriptor{
//	    ID:        "critic-tool",
//	    Name:      "Critic Agent",
//	    Tags:      []string{"critic"},
//	    Endpoints: map[string]string{"a2a": "http://localhost:8002/a2a"},
//	})
//
//	d, err := reg.Resolve("critic")
//	if errors.Is(err, registry.ErrNotFound) {
//	    // nobody offers critique
//	}
//
// # HTTP
//
// Server exposes the registry as JSON over HTTP:
//
//	srv := registry.NewServer(":8000", reg, logger)
//	go srv.Start()
//
// # Expiry
//
// Entries live for the process lifetime unless MemoryConfig.TTL is set, in
// which case an entry not re-registered within TTL stops resolving. Agents
// that want to survive a registry restart re-register periodically.
package registry
