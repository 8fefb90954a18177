// Package loop provides the single execution context that owns client state.
//
// Every mutation of shared state (app root, screen controllers, toasts) runs
// on one goroutine. Background work hands its result back with Dispatch and
// never touches state directly.
package loop

import (
	"sync"

	"go.uber.org/zap"
)

// defaultQueue is the number of mutations that can be queued before
// Dispatch blocks the sending goroutine.
const defaultQueue = 64

// Dispatcher marshals fn onto the state-owning context. Implementations run
// functions one at a time, in the order they were dispatched.
type Dispatcher interface {
	Dispatch(fn func())
}

// Func adapts a plain function to the Dispatcher interface.
type Func func(fn func())

// Dispatch calls f(fn).
func (f Func) Dispatch(fn func()) { f(fn) }

// Loop is a serial executor backed by a single goroutine. It is the
// Dispatcher used by headless runs and tests; the TUI uses the Bubbletea
// update loop instead.
type Loop struct {
	jobs     chan func()
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      *zap.Logger
}

// New starts a Loop. Call Close to stop it.
func New(log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		jobs: make(chan func(), defaultQueue),
		stop: make(chan struct{}),
		log:  log,
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Dispatch queues fn. Functions dispatched after Close are dropped.
func (l *Loop) Dispatch(fn func()) {
	select {
	case <-l.stop:
		l.log.Debug("loop closed, dropping dispatched function")
	case l.jobs <- fn:
	}
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine itself.
func (l *Loop) Do(fn func()) {
	done := make(chan struct{})
	l.Dispatch(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-l.stop:
	}
}

// Close stops the loop after the function currently executing returns.
// Queued functions that have not started are discarded. Safe to call more
// than once.
func (l *Loop) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		case fn := <-l.jobs:
			fn()
		}
	}
}
