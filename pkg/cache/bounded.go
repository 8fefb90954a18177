package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
)

// Bounded is a Cache that keeps at most a fixed number of entries, evicting
// the least recently used one on overflow.
type Bounded[V any] struct {
	lru       *lru.Cache[string, V]
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	metrics   *metrics.Metrics
}

// NewBounded creates a Bounded cache holding up to size entries.
func NewBounded[V any](size int, opts ...Option) (*Bounded[V], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("cache: bounded size %d: %w", size, err)
	}
	return &Bounded[V]{lru: c, metrics: o.metrics}, nil
}

func (b *Bounded[V]) Get(key string) (V, bool) {
	v, ok := b.lru.Get(key)
	if ok {
		b.hits.Add(1)
		b.metrics.CacheLookup("hit")
	} else {
		b.misses.Add(1)
		b.metrics.CacheLookup("miss")
	}
	return v, ok
}

func (b *Bounded[V]) Put(key string, value V) {
	if b.lru.Add(key, value) {
		b.evictions.Add(1)
	}
}

func (b *Bounded[V]) Invalidate(key string) { b.lru.Remove(key) }

func (b *Bounded[V]) Clear() { b.lru.Purge() }

func (b *Bounded[V]) Len() int { return b.lru.Len() }

// Evictions returns how many entries were dropped to make room.
func (b *Bounded[V]) Evictions() int64 { return b.evictions.Load() }

// Stats returns a snapshot of the lookup counters.
func (b *Bounded[V]) Stats() Stats {
	return Stats{Hits: b.hits.Load(), Misses: b.misses.Load(), Entries: b.lru.Len()}
}

func (b *Bounded[V]) recordBypass() { b.metrics.CacheLookup("bypass") }
