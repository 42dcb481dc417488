package action

import (
	"fmt"
	"sync"

	"github.com/roach88/fuser/internal/decision"
)

// Registry maps command names to handlers in registration order.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Names must be lower snake case and unique.
func (r *Registry) Register(h Handler) error {
	name := h.Spec().Name
	if !decision.ValidCommandName(name) {
		return fmt.Errorf("invalid command name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.order = append(r.order, name)
	r.handlers[name] = h
	return nil
}

// Lookup finds the handler for a command name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Catalog describes the registered commands in registration order.
func (r *Registry) Catalog() decision.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := make(decision.Catalog, 0, len(r.order))
	for _, name := range r.order {
		c = append(c, r.handlers[name].Spec())
	}
	return c
}
