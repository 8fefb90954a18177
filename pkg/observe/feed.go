// Package observe implements the subscribe side of client state: components
// emit change events after each mutation and renderers subscribe to them.
package observe

// Feed fans events out to subscribers in subscription order. It has no
// locking and must be used from the state-owning context only.
type Feed[E any] struct {
	next int
	subs []subscription[E]
}

type subscription[E any] struct {
	id int
	fn func(E)
}

// Subscribe registers fn and returns a function that removes it.
func (f *Feed[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	f.next++
	id := f.next
	f.subs = append(f.subs, subscription[E]{id: id, fn: fn})
	return func() {
		for i, s := range f.subs {
			if s.id == id {
				f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers e to every current subscriber. Subscribers added or removed
// during Emit take effect from the next call.
func (f *Feed[E]) Emit(e E) {
	subs := f.subs
	for _, s := range subs {
		s.fn(e)
	}
}

// Len returns the number of subscribers.
func (f *Feed[E]) Len() int { return len(f.subs) }
