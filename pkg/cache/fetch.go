package cache

import "context"

// bypassRecorder is implemented by caches that count forced refreshes.
type bypassRecorder interface {
	recordBypass()
}

// Fetched is the outcome of Fetch.
type Fetched[V any] struct {
	Key   string
	Value V
	// Loaded is set when Value came from load rather than from the cache.
	Loaded bool
}

// WriteBack stores a freshly loaded value under its key. It must run on the
// state-owning context after the result is known to be current, normally in
// a task's apply step, so a cancelled or superseded load never reaches the
// cache.
func (f Fetched[V]) WriteBack(c Cache[V]) {
	if f.Loaded {
		c.Put(f.Key, f.Value)
	}
}

// Fetch is a read-through lookup. On a hit it returns the cached value without
// calling load, unless force is set, in which case the read is skipped. Fetch
// never writes: a successful load is returned with Loaded set for the caller
// to WriteBack, and a failed load returns the error and leaves the cache
// untouched.
func Fetch[V any](ctx context.Context, c Cache[V], key string, force bool, load func(ctx context.Context) (V, error)) (Fetched[V], error) {
	if force {
		if r, ok := c.(bypassRecorder); ok {
			r.recordBypass()
		}
	} else if v, ok := c.Get(key); ok {
		return Fetched[V]{Key: key, Value: v}, nil
	}

	v, err := load(ctx)
	if err != nil {
		return Fetched[V]{Key: key}, err
	}
	return Fetched[V]{Key: key, Value: v, Loaded: true}, nil
}
