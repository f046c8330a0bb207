// Package session keeps per-device and per-user objects alive while they are
// in use and tears them down once they have been idle for a while.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type entry[T any] struct {
	value    T
	lastUsed time.Time
}

// Registry maps a key (device id, user id) to a lazily created value.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	ttl     time.Duration
	create  func(key string) (T, error)
	onEvict func(key string, value T)
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewRegistry returns a registry whose values are built by create on first
// use and evicted after ttl without a Get. onEvict may be nil.
func NewRegistry[T any](name string, ttl time.Duration, create func(key string) (T, error),
	onEvict func(key string, value T), log logrus.FieldLogger) *Registry[T] {
	return &Registry[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		create:  create,
		onEvict: onEvict,
		log:     log.WithField("registry", name),
		now:     time.Now,
	}
}

// Get returns the value for key, creating it if needed, and marks it used.
func (r *Registry[T]) Get(key string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.lastUsed = r.now()
		return e.value, nil
	}
	v, err := r.create(key)
	if err != nil {
		var zero T
		return zero, err
	}
	r.entries[key] = &entry[T]{value: v, lastUsed: r.now()}
	return v, nil
}

// Peek returns the value for key without creating it or marking it used.
func (r *Registry[T]) Peek(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Remove evicts key immediately.
func (r *Registry[T]) Remove(key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if ok && r.onEvict != nil {
		r.onEvict(key, e.value)
	}
}

// Sweep evicts every entry idle for longer than the ttl and returns how many
// were evicted.
func (r *Registry[T]) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	evicted := map[string]T{}

	r.mu.Lock()
	for k, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			evicted[k] = e.value
			delete(r.entries, k)
		}
	}
	r.mu.Unlock()

	for k, v := range evicted {
		if r.onEvict != nil {
			r.onEvict(k, v)
		}
	}
	if len(evicted) > 0 {
		r.log.WithField("evicted", len(evicted)).Debug("swept idle sessions")
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (r *Registry[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len is the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
