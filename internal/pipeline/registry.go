package pipeline

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds a transform from its sub-configuration (the object stored
// under the transform's key in fb.page.json, or an empty map).
type Factory func(settings map[string]any) (Transform, error)

// Registry maps transform names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("transform name is required")
	}
	if f == nil {
		return fmt.Errorf("transform %s: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("transform %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register that panics, for package level wiring.
func (r *Registry) MustRegister(name string, f Factory) *Registry {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
	return r
}

// Build creates the named transform.
func (r *Registry) Build(name string, settings map[string]any) (Transform, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transform %s not registered", name)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	t, err := f(settings)
	if err != nil {
		return nil, fmt.Errorf("configure transform %s: %w", name, err)
	}
	return t, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
