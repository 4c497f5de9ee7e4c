package storage

import (
	"fmt"
	"sync"
)

// Registry maps database type names to store factories. Adapters register
// themselves from their package init.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory for a database type.
func (r *Registry) Register(storeType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[storeType] = factory
}

// Create builds a store of the given type.
func (r *Registry) Create(storeType string, config StoreConfig) (Store, error) {
	r.mu.RLock()
	factory, exists := r.factories[storeType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("storage type %s not registered", storeType)
	}
	return factory.Create(config)
}

// IsRegistered reports whether the type has a factory.
func (r *Registry) IsRegistered(storeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[storeType]
	return exists
}

// GetAvailableTypes lists the registered database types.
func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for storeType := range r.factories {
		types = append(types, storeType)
	}
	return types
}

// DefaultRegistry is the process-wide registry adapters register into.
var DefaultRegistry = NewRegistry()

// Register adds a factory to the default registry.
func Register(storeType string, factory Factory) {
	DefaultRegistry.Register(storeType, factory)
}

// Create builds a store from the default registry.
func Create(storeType string, config StoreConfig) (Store, error) {
	return DefaultRegistry.Create(storeType, config)
}

// GetAvailableTypes lists the default registry's database types.
func GetAvailableTypes() []string {
	return DefaultRegistry.GetAvailableTypes()
}
