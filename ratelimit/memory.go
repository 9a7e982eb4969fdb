package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	capacity int
	window   time.Duration
	reduced  int
	reason   string // why the last Reduce happened
}

// MemoryLimiter paces resources in-process with token buckets.
// It is safe for concurrent use.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
}

// NewMemoryLimiter creates a new in-memory rate limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
	}
}

func every(capacity int, window time.Duration) rate.Limit {
	return rate.Every(window / time.Duration(capacity))
}

// SetCapacity configures the rate limit for a resource.
func (m *MemoryLimiter) SetCapacity(resource string, capacity int, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if capacity <= 0 || window <= 0 {
		delete(m.buckets, resource)
		return
	}

	if b, exists := m.buckets[resource]; exists {
		b.capacity = capacity
		b.window = window
		b.limiter.SetLimit(every(capacity, window))
		b.limiter.SetBurst(capacity)
		return
	}

	m.buckets[resource] = &bucket{
		limiter:  rate.NewLimiter(every(capacity, window), capacity),
		capacity: capacity,
		window:   window,
	}
}

// GetCapacity returns the current capacity info for a resource.
func (m *MemoryLimiter) GetCapacity(resource string) *Capacity {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[resource]
	if !exists {
		return nil
	}

	return &Capacity{
		Resource:  resource,
		Available: int(b.limiter.Tokens()),
		Total:     b.capacity,
		Window:    b.window,
		Reduced:   b.reduced,
		Reason:    b.reason,
	}
}

func (m *MemoryLimiter) lookup(resource string) (*rate.Limiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	b, exists := m.buckets[resource]
	if !exists {
		return nil, ErrResourceUnknown
	}
	return b.limiter, nil
}

// Acquire blocks until a token is available for the resource.
func (m *MemoryLimiter) Acquire(ctx context.Context, resource string) error {
	l, err := m.lookup(resource)
	if err != nil {
		return err
	}
	return l.Wait(ctx)
}

// TryAcquire attempts to acquire a token without blocking.
func (m *MemoryLimiter) TryAcquire(resource string) bool {
	l, err := m.lookup(resource)
	if err != nil {
		return false
	}
	return l.Allow()
}

// Reduce cuts the rate and burst for resource by 25%.
func (m *MemoryLimiter) Reduce(resource string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[resource]
	if !exists {
		return
	}

	newCapacity := int(float64(b.capacity) * 0.75)
	if newCapacity < 1 {
		newCapacity = 1
	}
	b.capacity = newCapacity
	b.reduced++
	b.reason = reason
	b.limiter.SetLimit(every(newCapacity, b.window))
	b.limiter.SetBurst(newCapacity)
}

// Close shuts down the limiter. Calls already waiting in Acquire finish
// on their own schedule; new calls fail with ErrClosed.
func (m *MemoryLimiter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return nil
}

var _ RateLimiter = (*MemoryLimiter)(nil)
