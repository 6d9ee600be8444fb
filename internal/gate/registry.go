package gate

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds gate presets by name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Preset
}

// NewRegistry creates an empty preset registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Preset)}
}

// NewRegistryWithBuiltins creates a registry preloaded with Builtins.
func NewRegistryWithBuiltins() *Registry {
	r := NewRegistry()
	for _, p := range Builtins() {
		_ = r.Register(p)
	}
	return r
}

// Register adds a preset to the registry. Returns an error if a preset
// with the same name is already registered.
func (r *Registry) Register(p *Preset) error {
	if _, err := p.Definitions(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name]; exists {
		return fmt.Errorf("preset %q already registered", p.Name)
	}
	r.byName[p.Name] = p
	return nil
}

// Override registers p, replacing any preset with the same name. Presets
// loaded from a file override builtins this way.
func (r *Registry) Override(p *Preset) error {
	if _, err := p.Definitions(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[p.Name] = p
	return nil
}

// Unregister removes a preset by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// Get returns a preset by name, or nil if not found.
func (r *Registry) Get(name string) *Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// All returns every registered preset sorted by name.
func (r *Registry) All() []*Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Preset, 0, len(r.byName))
	for _, p := range r.byName {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Count returns the total number of registered presets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
