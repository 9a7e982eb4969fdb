// Package discovery is the agent-side view of the registry.
//
// Agents announce themselves with RegisterSelf (or a Keeper, which repeats
// the registration on an interval) and find peers with Resolve:
//
//	dc := discovery.New(discovery.Config{RegistryURL: "http://localhost:8000"})
//	dc.RegisterSelf(ctx, myDescriptor)
//
//	if endpoint, ok := dc.Resolve(ctx, "critic"); ok {
//	    // POST the envelope to endpoint
//	}
//
// Resolve never returns an error. Registry outages, unknown tags and
// descriptors without an a2a endpoint all read as "no such capability",
// which callers handle as a normal branch. Lookup exposes the typed error
// when the cause matters.
package discovery
