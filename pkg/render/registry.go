package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrRegistrySealed is returned when registering after Seal.
	ErrRegistrySealed = errors.New("render: registry is sealed")
	// ErrDuplicateDefault is returned when a second engine is marked default.
	ErrDuplicateDefault = errors.New("render: default form engine already registered")
)

// Entry is one registered form engine.
type Entry struct {
	Name      string
	IsDefault bool
	Renderer  Renderer
}

type snapshot struct {
	engines     map[string]Entry
	defaultName string
}

// Registry stores form engines by name with at most one default. Registration
// happens during initialisation; every Register publishes a new immutable
// snapshot, so lookups never take a lock and are safe from any goroutine.
type Registry struct {
	mu      sync.Mutex
	sealed  bool
	current atomic.Pointer[snapshot]
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&snapshot{engines: map[string]Entry{}})
	return r
}

// Register adds a renderer under name. Duplicate names, a second default, and
// registration after Seal return an error.
func (r *Registry) Register(name string, renderer Renderer, isDefault bool) error {
	if renderer == nil {
		return fmt.Errorf("render: renderer is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("render: renderer name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}

	prev := r.current.Load()
	if _, exists := prev.engines[name]; exists {
		return fmt.Errorf("render: renderer %q already registered", name)
	}
	if isDefault && prev.defaultName != "" {
		return fmt.Errorf("%w: %q", ErrDuplicateDefault, prev.defaultName)
	}

	next := &snapshot{
		engines:     make(map[string]Entry, len(prev.engines)+1),
		defaultName: prev.defaultName,
	}
	for key, entry := range prev.engines {
		next.engines[key] = entry
	}
	next.engines[name] = Entry{Name: name, IsDefault: isDefault, Renderer: renderer}
	if isDefault {
		next.defaultName = name
	}
	r.current.Store(next)
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(name string, renderer Renderer, isDefault bool) {
	if err := r.Register(name, renderer, isDefault); err != nil {
		panic(err)
	}
}

// Seal rejects any further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup retrieves a renderer by name.
func (r *Registry) Lookup(name string) (Renderer, error) {
	entry, ok := r.current.Load().engines[strings.TrimSpace(name)]
	if !ok {
		return nil, &UnknownFormEngineError{Name: name}
	}
	return entry.Renderer, nil
}

// LookupDefault retrieves the renderer marked as default.
func (r *Registry) LookupDefault() (Renderer, error) {
	snap := r.current.Load()
	if snap.defaultName == "" {
		return nil, &NoDefaultFormEngineError{Registered: sortedNames(snap.engines)}
	}
	return snap.engines[snap.defaultName].Renderer, nil
}

// DefaultName returns the default engine name, or "" when none is marked.
func (r *Registry) DefaultName() string {
	return r.current.Load().defaultName
}

// List returns a sorted list of renderer names.
func (r *Registry) List() []string {
	return sortedNames(r.current.Load().engines)
}

// Has reports whether a renderer is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.current.Load().engines[strings.TrimSpace(name)]
	return ok
}

func sortedNames(engines map[string]Entry) []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
