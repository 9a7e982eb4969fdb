package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrClosed          = errors.New("limiter closed")
	ErrResourceUnknown = errors.New("unknown resource")
)

// Well-known resources paced by the web collaborator.
const (
	ResourceSearch = "search"
	ResourcePage   = "page"
)

// RateLimiter paces calls to named external resources.
type RateLimiter interface {
	// Acquire blocks until a call to resource is allowed.
	// Returns the context error if ctx ends first and ErrResourceUnknown if
	// the resource has no configured capacity.
	Acquire(ctx context.Context, resource string) error

	// TryAcquire reports whether a call is allowed right now, consuming a
	// token if so.
	TryAcquire(resource string) bool

	// SetCapacity allows capacity calls per window, with bursts up to
	// capacity. A non-positive capacity or window removes the limit.
	SetCapacity(resource string, capacity int, window time.Duration)

	// Reduce lowers the rate for resource by a quarter, for use after the
	// resource answers 429. The burst never drops below one.
	Reduce(resource string, reason string)

	// GetCapacity returns the current settings for resource, or nil.
	GetCapacity(resource string) *Capacity

	// Close shuts down the limiter.
	Close() error
}

// Capacity describes the limit on a resource.
type Capacity struct {
	Resource  string
	Available int
	Total     int
	Window    time.Duration
	Reduced   int // how many times Reduce was applied
	Reason    string
}
