package registry

import (
	"sort"
	"sync"
	"time"
)

// MemoryRegistry is an in-memory Registry keyed by tag.
// Registration is last-writer-wins per tag with no merge or version check.
type MemoryRegistry struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	watchers []chan Event
	closed   bool
	done     chan struct{}
	now      func() time.Time

	// TTL for stale entry detection. Zero means no expiry.
	ttl time.Duration
}

// MemoryConfig configures the in-memory registry.
type MemoryConfig struct {
	// TTL specifies how long an entry survives without re-registration.
	// Zero means entries live for the lifetime of the process.
	TTL time.Duration
}

// NewMemoryRegistry creates a new in-memory registry.
func NewMemoryRegistry(cfg MemoryConfig) *MemoryRegistry {
	r := &MemoryRegistry{
		entries: make(map[string]Entry),
		done:    make(chan struct{}),
		now:     time.Now,
		ttl:     cfg.TTL,
	}

	if cfg.TTL > 0 {
		go r.cleanupLoop()
	}

	return r
}

// Register stores d under each of its tags.
func (r *MemoryRegistry) Register(d Descriptor) ([]string, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	now := r.now()
	for _, tag := range d.Tags {
		_, exists := r.entries[tag]
		stored := d.Clone()
		r.entries[tag] = Entry{Tag: tag, Descriptor: stored, LastSeen: now}

		eventType := EventAdded
		if exists {
			eventType = EventUpdated
		}
		r.notifyWatchers(Event{Type: eventType, Tag: tag, Descriptor: stored.Clone()})
	}

	tags := make([]string, 0, len(d.Tags))
	return append(tags, d.Tags...), nil
}

// Resolve returns the descriptor registered under tag.
func (r *MemoryRegistry) Resolve(tag string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return Descriptor{}, ErrClosed
	}

	e, ok := r.entries[tag]
	if !ok || r.stale(e, r.now()) {
		return Descriptor{}, ErrNotFound
	}
	return e.Descriptor.Clone(), nil
}

// List returns one descriptor per tag, ordered by tag. An agent registered
// under two tags appears twice.
func (r *MemoryRegistry) List() ([]Descriptor, error) {
	entries, err := r.Entries()
	if err != nil {
		return nil, err
	}
	result := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Descriptor)
	}
	return result, nil
}

// Entries returns the live entries ordered by tag.
func (r *MemoryRegistry) Entries() ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	now := r.now()
	result := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if r.stale(e, now) {
			continue
		}
		e.Descriptor = e.Descriptor.Clone()
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Tag < result[j].Tag
	})

	return result, nil
}

// Watch returns a channel of registry events.
func (r *MemoryRegistry) Watch() (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, 64)
	r.watchers = append(r.watchers, ch)

	return ch, nil
}

// Close shuts down the registry and closes all watcher channels.
func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	close(r.done)

	for _, ch := range r.watchers {
		close(ch)
	}
	r.watchers = nil

	return nil
}

func (r *MemoryRegistry) stale(e Entry, now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.LastSeen) > r.ttl
}

// notifyWatchers sends without blocking; a full watcher misses the event.
// Must be called with lock held.
func (r *MemoryRegistry) notifyWatchers(event Event) {
	for _, ch := range r.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (r *MemoryRegistry) cleanupLoop() {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evictStale()
		}
	}
}

func (r *MemoryRegistry) evictStale() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	now := r.now()
	for tag, e := range r.entries {
		if r.stale(e, now) {
			delete(r.entries, tag)
			r.notifyWatchers(Event{Type: EventRemoved, Tag: tag, Descriptor: e.Descriptor})
		}
	}
}
