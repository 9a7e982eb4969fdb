package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/vinayprograms/refinery/discovery"
	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/pipeline"
	"github.com/vinayprograms/refinery/registry"
	"github.com/vinayprograms/refinery/telemetry"
)

// maxReplyBytes caps how much of a hop reply is read.
const maxReplyBytes = 4 << 20

// Hop delivers an envelope to the agent behind a tag and returns its reply.
//
// A tag with no agent behind it yields an error with code
// CAPABILITY_MISSING. Transport failures yield REMOTE_INVOCATION (or
// TIMEOUT) and unreadable replies MALFORMED_RESPONSE.
type Hop interface {
	Invoke(ctx context.Context, tag string, env pipeline.Envelope) (pipeline.Reply, error)
}

// Resolver looks up the descriptor registered for a tag.
// *discovery.Client satisfies it.
type Resolver interface {
	Lookup(ctx context.Context, tag string) (registry.Descriptor, error)
}

// RemoteHop reaches agents over HTTP, finding them through the registry.
type RemoteHop struct {
	resolver Resolver
	client   *http.Client
}

// NewRemoteHop creates a hop that resolves tags with r. A nil client uses a
// plain http.Client; deadlines come from the caller's context.
func NewRemoteHop(r Resolver, client *http.Client) *RemoteHop {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteHop{resolver: r, client: client}
}

// Invoke resolves tag and posts env to its a2a endpoint.
func (h *RemoteHop) Invoke(ctx context.Context, tag string, env pipeline.Envelope) (pipeline.Reply, error) {
	d, err := h.resolver.Lookup(ctx, tag)
	if err != nil {
		if errors.Is(err, errors.ErrCodeCapabilityMissing) {
			return pipeline.Reply{}, err
		}
		return pipeline.Reply{}, errors.ResolutionFailure(tag, err)
	}
	endpoint := d.Endpoint(discovery.DefaultEndpoint)
	if endpoint == "" {
		return pipeline.Reply{}, errors.ResolutionFailure(tag,
			fmt.Errorf("descriptor %s has no %q endpoint", d.ID, discovery.DefaultEndpoint))
	}
	return h.Post(ctx, tag, endpoint, env)
}

// Post sends env straight to endpoint, skipping resolution.
func (h *RemoteHop) Post(ctx context.Context, tag, endpoint string, env pipeline.Envelope) (pipeline.Reply, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return pipeline.Reply{}, errors.Wrap(err, "encode envelope", errors.WithTag(tag))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pipeline.Reply{}, errors.RemoteInvocationFailure(tag, err)
	}
	req.Header.Set("Content-Type", "application/json")
	telemetry.InjectHTTP(ctx, req.Header)

	resp, err := h.client.Do(req)
	if err != nil {
		return pipeline.Reply{}, errors.RemoteInvocationFailure(tag, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return pipeline.Reply{}, errors.RemoteInvocationFailure(tag, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pipeline.Reply{}, errors.RemoteInvocationFailure(tag,
			fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	var reply pipeline.Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return pipeline.Reply{}, errors.MalformedResponse(tag, err.Error())
	}
	if reply.Status == "" {
		return pipeline.Reply{}, errors.MalformedResponse(tag, "missing status")
	}
	return reply, nil
}

// Runner handles one envelope in-process.
type Runner interface {
	Run(ctx context.Context, env pipeline.Envelope) (pipeline.Reply, error)
}

// LocalHop dispatches to in-process runners. It is used by tests and by
// the single-process mode of the CLI.
type LocalHop struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewLocalHop creates an empty local hop.
func NewLocalHop() *LocalHop {
	return &LocalHop{runners: make(map[string]Runner)}
}

// Add binds tag to r, replacing any earlier binding.
func (h *LocalHop) Add(tag string, r Runner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runners[tag] = r
}

// Remove unbinds tag.
func (h *LocalHop) Remove(tag string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.runners, tag)
}

// Invoke runs the runner bound to tag on a private copy of env. The call
// returns when ctx ends even if the runner does not.
func (h *LocalHop) Invoke(ctx context.Context, tag string, env pipeline.Envelope) (pipeline.Reply, error) {
	h.mu.RLock()
	r, ok := h.runners[tag]
	h.mu.RUnlock()
	if !ok {
		return pipeline.Reply{}, errors.ResolutionFailure(tag, registry.ErrNotFound)
	}

	type result struct {
		reply pipeline.Reply
		err   error
	}
	done := make(chan result, 1)
	in := env.Clone()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: errors.RecoverPanic(rec)}
			}
		}()
		reply, err := r.Run(ctx, in)
		done <- result{reply, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return pipeline.Reply{}, errors.RemoteInvocationFailure(tag, res.err)
		}
		res.reply.Trace = cloneTrace(res.reply.Trace)
		return res.reply, nil
	case <-ctx.Done():
		return pipeline.Reply{}, errors.RemoteInvocationFailure(tag, ctx.Err())
	}
}

func cloneTrace(trace []pipeline.StepRecord) []pipeline.StepRecord {
	out := make([]pipeline.StepRecord, len(trace))
	for i, s := range trace {
		out[i] = s.Clone()
	}
	return out
}
