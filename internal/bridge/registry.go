package bridge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"askpurposely/internal/queue"
)

// Factory builds a queue service for a user; the ctx bounds hydration.
type Factory func(ctx context.Context, userID string) *queue.Service

// Registry owns one Binding per active user session.
type Registry struct {
	factory  Factory
	debounce time.Duration

	mu       sync.Mutex
	bindings map[string]*Binding

	// flight coalesces concurrent creations per user; snapshot hydration
	// runs once, and never under the registry lock.
	flight singleflight.Group
}

func NewRegistry(factory Factory, debounce time.Duration) *Registry {
	return &Registry{
		factory:  factory,
		debounce: debounce,
		bindings: make(map[string]*Binding),
	}
}

// Get returns the binding for a user, if one is active.
func (r *Registry) Get(userID string) (*Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[userID]
	return b, ok
}

// GetOrCreate returns the user's binding, creating (and hydrating) one on
// first use. A slow store read for one user must not stall lookups for
// another, so the factory runs outside the registry lock.
func (r *Registry) GetOrCreate(ctx context.Context, userID string) (*Binding, bool) {
	if b, ok := r.Get(userID); ok {
		return b, false
	}
	created := false
	v, _, _ := r.flight.Do(userID, func() (any, error) {
		if b, ok := r.Get(userID); ok {
			return b, nil
		}
		b := NewBinding(r.factory(ctx, userID), r.debounce)
		r.mu.Lock()
		r.bindings[userID] = b
		r.mu.Unlock()
		created = true
		return b, nil
	})
	return v.(*Binding), created
}

// Drop tears a session down and forgets it.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	b, ok := r.bindings[userID]
	delete(r.bindings, userID)
	r.mu.Unlock()
	if ok {
		b.Close()
	}
}

// CloseAll tears every session down (server shutdown).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	bindings := make([]*Binding, 0, len(r.bindings))
	for id, b := range r.bindings {
		bindings = append(bindings, b)
		delete(r.bindings, id)
	}
	r.mu.Unlock()
	for _, b := range bindings {
		b.Close()
	}
}
