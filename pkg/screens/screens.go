// Package screens holds the screen-level controllers. Each owns a task.Core,
// reads the session from the state.Root, and cancels its tasks and drops its
// caches when the Root signs out or the screen is closed.
//
// Controller methods run on the state-owning context, like the Root's.
package screens

import (
	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/loop"
	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
	"gitlab.com/tinyland/lab/research-pulse/pkg/observe"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/state"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
)

// Deps are shared by every controller.
type Deps struct {
	Dispatcher loop.Dispatcher
	Root       *state.Root
	Service    research.Service
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Classifier *apperr.Classifier

	// SearchCacheSize bounds the search result cache. Zero uses 128.
	SearchCacheSize int
	// Retry applies to the dashboard header. The zero value tries once.
	Retry task.RetryPolicy
}

type base struct {
	core        *task.Core
	root        *state.Root
	svc         research.Service
	log         *zap.Logger
	metrics     *metrics.Metrics
	feed        observe.Feed[struct{}]
	unsubscribe []func()
}

func newBase(owner string, d Deps) *base {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named(owner)
	b := &base{
		core: task.New(task.Config{
			Owner:      owner,
			Dispatcher: d.Dispatcher,
			Sink:       d.Root,
			Logger:     log,
			Metrics:    d.Metrics,
			Classifier: d.Classifier,
		}),
		root:    d.Root,
		svc:     d.Service,
		log:     log,
		metrics: d.Metrics,
	}
	b.unsubscribe = append(b.unsubscribe, b.core.Subscribe(func(task.Event) { b.changed() }))
	return b
}

// onReset registers fn as the controller's sign-out hook.
func (b *base) onReset(fn func()) {
	b.unsubscribe = append(b.unsubscribe, b.root.OnReset(func() {
		b.core.CancelAll()
		b.core.ClearError()
		fn()
		b.changed()
	}))
}

func (b *base) changed() { b.feed.Emit(struct{}{}) }

// Core exposes loading and error state to the renderer.
func (b *base) Core() *task.Core { return b.core }

// IsLoading reports whether any of the screen's tasks is loading.
func (b *base) IsLoading() bool { return b.core.IsLoading() }

// ErrorMessage is the screen's inline error, or "".
func (b *base) ErrorMessage() string { return b.core.ErrorMessage() }

// ClearError dismisses the screen's inline error.
func (b *base) ClearError() { b.core.ClearError() }

// Subscribe registers fn to run after any change to the screen.
func (b *base) Subscribe(fn func()) (unsubscribe func()) {
	return b.feed.Subscribe(func(struct{}) { fn() })
}

// Close cancels every task so late completions never reach a dismissed
// screen, and detaches the controller from the Root.
func (b *base) Close() {
	b.core.CancelAll()
	for _, u := range b.unsubscribe {
		u()
	}
	b.unsubscribe = nil
}
