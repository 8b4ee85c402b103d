package store

import (
	"sync"

	"github.com/roach88/reactor/internal/reactive"
)

// Host registers named reactive instances.
type Host interface {
	// Register returns the instance registered under name, creating it from
	// v when there is none. When an instance already exists v is discarded.
	// Values that are not records or sequences are returned unchanged.
	Register(name string, v any, recursive bool, protected ...string) any

	// Release removes the entry for name. A later Register creates a fresh
	// instance.
	Release(name string)
}

var (
	_ Host = Headless{}
	_ Host = (*Registry)(nil)
	_ Host = (*Persistent)(nil)
)

// Headless is the Host used without a runtime context. It deduplicates
// nothing.
type Headless struct{}

// Register returns a new reactive value for v.
func (Headless) Register(_ string, v any, recursive bool, protected ...string) any {
	return reactive.New(v, recursive, protected...)
}

// Release is a no-op.
func (Headless) Release(string) {}

// Registry keeps one reactive instance per name in memory.
type Registry struct {
	mu      sync.Mutex
	entries map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Register returns the existing instance for name or registers a new one.
// Concurrent first registrations resolve to the same instance.
func (r *Registry) Register(name string, v any, recursive bool, protected ...string) any {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[name]; ok {
		return existing
	}
	inst := reactive.New(v, recursive, protected...)
	r.entries[name] = inst
	return inst
}

// Lookup returns the instance registered under name.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.entries[name]
	return inst, ok
}

// Release forgets name.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}
