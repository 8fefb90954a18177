// Package cache holds parameter-keyed results of data-access calls.
//
// Entries never expire on their own. A value stays under its key until it is
// overwritten by a refresh, invalidated, or cleared on sign-out. Keys must be
// derived from every parameter that changes the result; see Key.
package cache

import (
	"sync"

	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
)

// Cache is the contract shared by Store and Bounded. Implementations are safe
// for concurrent use, since loads complete on operation goroutines.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Put(key string, value V)
	Invalidate(key string)
	Clear()
	Len() int
}

// Stats holds lookup counters for a cache.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

type options struct {
	metrics *metrics.Metrics
}

// Option configures a Store or Bounded cache.
type Option func(*options)

// WithMetrics records lookups on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Store is an unbounded in-memory cache that lives as long as its owner.
type Store[V any] struct {
	mu      sync.RWMutex
	items   map[string]V
	hits    int64
	misses  int64
	metrics *metrics.Metrics
}

// NewStore creates an empty Store.
func NewStore[V any](opts ...Option) *Store[V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[V]{
		items:   make(map[string]V),
		metrics: o.metrics,
	}
}

// Get returns the value stored under exactly key.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]
	if ok {
		s.hits++
		s.metrics.CacheLookup("hit")
	} else {
		s.misses++
		s.metrics.CacheLookup("miss")
	}
	return v, ok
}

// Put stores value under key, replacing any previous value.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// Invalidate removes key. Missing keys are ignored.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Clear removes every entry. Counters are kept.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]V)
	s.mu.Unlock()
}

// Len returns the number of entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Keys returns every stored key in no particular order.
func (s *Store[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns a snapshot of the lookup counters.
func (s *Store[V]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Hits: s.hits, Misses: s.misses, Entries: len(s.items)}
}

func (s *Store[V]) recordBypass() { s.metrics.CacheLookup("bypass") }
