package registry

import (
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound          = errors.New("agent not found")
	ErrClosed            = errors.New("registry closed")
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

// Descriptor is an agent's self-description: who it is, which capability
// tags it answers to and where to reach it.
type Descriptor struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Endpoints   map[string]string `json:"endpoints"`
	Auth        map[string]any    `json:"auth"`
}

// Endpoint returns the address registered for op, or "" when absent.
func (d Descriptor) Endpoint(op string) string {
	return d.Endpoints[op]
}

// HasTag reports whether d advertises tag.
func (d Descriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stored descriptors never alias caller maps.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Tags = append([]string(nil), d.Tags...)
	if d.Endpoints != nil {
		c.Endpoints = make(map[string]string, len(d.Endpoints))
		for k, v := range d.Endpoints {
			c.Endpoints[k] = v
		}
	}
	if d.Auth != nil {
		c.Auth = make(map[string]any, len(d.Auth))
		for k, v := range d.Auth {
			c.Auth[k] = v
		}
	}
	return c
}

// Validate checks the fields registration depends on. A descriptor with
// no tags is valid and registers nothing.
func Validate(d Descriptor) error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrInvalidDescriptor
	}
	for _, t := range d.Tags {
		if strings.TrimSpace(t) == "" {
			return ErrInvalidDescriptor
		}
	}
	return nil
}

// Entry is a stored descriptor plus the time it was last registered.
type Entry struct {
	Tag        string     `json:"tag"`
	Descriptor Descriptor `json:"card"`
	LastSeen   time.Time  `json:"last_seen"`
}

// EventType represents the type of registry event.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event is a change to one tag's entry. Removed events come from TTL
// expiry; re-registration is an update.
type Event struct {
	Type       EventType
	Tag        string
	Descriptor Descriptor
}

// Registry maps capability tags to descriptors.
type Registry interface {
	// Register stores d under each of its tags, replacing whatever was
	// there. It returns the tags stored.
	Register(d Descriptor) ([]string, error)

	// Resolve returns the descriptor most recently registered under tag.
	// Returns ErrNotFound if the tag is unknown.
	Resolve(tag string) (Descriptor, error)

	// List returns one descriptor per tag entry, ordered by tag.
	List() ([]Descriptor, error)

	// Entries returns the stored entries with their last-seen times.
	Entries() ([]Entry, error)

	// Watch returns a channel of registry events.
	// The channel is closed when the registry is closed.
	Watch() (<-chan Event, error)

	// Close shuts down the registry.
	Close() error
}
