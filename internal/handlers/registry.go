package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
)

// Deps are the collaborators factory constructors may use.
type Deps struct {
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Constructor creates a handler factory.
type Constructor func(deps Deps) dispatcher.HandlerFactory

// Registry maps handler kinds to factory constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns a registry with the bundled kinds registered.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.constructors[dispatcher.KindStatic] = func(Deps) dispatcher.HandlerFactory { return Static() }
	r.constructors[dispatcher.KindRedirect] = func(Deps) dispatcher.HandlerFactory { return Redirect() }
	r.constructors[dispatcher.KindPassthrough] = func(Deps) dispatcher.HandlerFactory { return Passthrough() }
	r.constructors[dispatcher.KindProxy] = func(d Deps) dispatcher.HandlerFactory { return NewProxy(d.Transport, d.Logger) }
	return r
}

// Register adds a constructor for kind. Kinds can only be registered once.
func (r *Registry) Register(kind string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[kind]; exists {
		return fmt.Errorf("handler kind %q already registered", kind)
	}
	r.constructors[kind] = c
	return nil
}

// IsRegistered reports whether kind has a constructor.
func (r *Registry) IsRegistered(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[kind]
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build creates factories for kinds, in order.
func (r *Registry) Build(kinds []string, deps Deps) ([]dispatcher.HandlerFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]dispatcher.HandlerFactory, 0, len(kinds))
	seen := make(map[string]bool, len(kinds))
	for _, kind := range kinds {
		c, ok := r.constructors[kind]
		if !ok {
			return nil, fmt.Errorf("unknown handler kind %q", kind)
		}
		if seen[kind] {
			return nil, fmt.Errorf("handler kind %q listed twice", kind)
		}
		seen[kind] = true
		factories = append(factories, c(deps))
	}
	return factories, nil
}
