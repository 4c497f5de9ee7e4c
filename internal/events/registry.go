package events

import (
	"fmt"
	"sync"
)

// Factory builds a configured Publisher for one backend.
type Factory func() (Publisher, error)

// Registry maps backend names to publisher factories. Backends register
// themselves (or are registered by main) and are looked up by the name
// carried in configuration.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a backend factory.
func (r *Registry) Register(backend string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

// Create builds a publisher for the named backend.
func (r *Registry) Create(backend string) (Publisher, error) {
	r.mu.RLock()
	factory, exists := r.factories[backend]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("event backend %s not registered", backend)
	}
	return factory()
}

// IsRegistered reports whether the named backend has a factory.
func (r *Registry) IsRegistered(backend string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[backend]
	return exists
}

// AvailableBackends lists the registered backend names.
func (r *Registry) AvailableBackends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backends := make([]string, 0, len(r.factories))
	for backend := range r.factories {
		backends = append(backends, backend)
	}
	return backends
}
