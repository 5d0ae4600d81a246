// Package handler maps task types to the code that executes them.
package handler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// Registry resolves task types to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[task.Type]task.Handler
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[task.Type]task.Handler)}
}

// Register binds a handler to a type, replacing any previous binding.
func (r *Registry) Register(t task.Type, h task.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Resolve returns the handler for t or an error wrapping task.ErrUnknownTaskType.
func (r *Registry) Resolve(t task.Type) (task.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", task.ErrUnknownTaskType, t)
	}
	return h, nil
}

// Types lists the registered task types in sorted order.
func (r *Registry) Types() []task.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]task.Type, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
