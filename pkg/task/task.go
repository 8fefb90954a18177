// Package task implements named, supersedable asynchronous operations for
// screen controllers.
//
// A Core owns one slot per task name. Starting a task whose name already has
// a run in flight cancels that run and starts the new one; the old run's
// result is discarded when it arrives because its captured generation no
// longer matches the slot. Operations run on their own goroutine and their
// completion is applied through the Core's Dispatcher, so all Core state is
// confined to the state-owning context.
package task

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/loop"
	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
	"gitlab.com/tinyland/lab/research-pulse/pkg/observe"
)

// DefaultName is the task name used when the caller passes "".
const DefaultName = "default"

// Operation is the work a task performs. It should return ctx.Err() (or an
// error wrapping context.Canceled) promptly once ctx is cancelled.
type Operation func(ctx context.Context) error

// ErrorSink receives errors that must be handled above the screen, such as
// unauthorized responses that force a sign-out.
type ErrorSink interface {
	HandleError(err error)
}

// ConnectivitySink is implemented by sinks that track whether the backend
// is reachable. A Core reports every success as online and every
// connection failure as offline.
type ConnectivitySink interface {
	SetOnline(online bool)
}

// Outcome is how a run ended.
type Outcome int

const (
	Pending Outcome = iota
	Succeeded
	Failed
	Cancelled
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Superseded:
		return "superseded"
	default:
		return "invalid"
	}
}

// EventKind identifies a Core state change.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
	EventCancelled
	EventErrorChanged
)

// Event is emitted after every Core mutation.
type Event struct {
	Task    string
	Kind    EventKind
	Outcome Outcome
}

type options struct {
	showLoading    bool
	reportError    bool
	reportGlobally bool
}

// Option adjusts how a single run reports progress and failure.
type Option func(*options)

// WithoutLoading keeps the task out of the loading set.
func WithoutLoading() Option { return func(o *options) { o.showLoading = false } }

// WithoutErrorReport drops non-auth failures instead of storing them for the
// screen. Unauthorized errors are still escalated.
func WithoutErrorReport() Option { return func(o *options) { o.reportError = false } }

// ReportGlobally forwards failures to the Core's ErrorSink instead of keeping
// them screen-local.
func ReportGlobally() Option { return func(o *options) { o.reportGlobally = true } }

// Run is the handle for one started operation. Outcome and Err are valid once
// Done is closed.
type Run struct {
	name    string
	gen     uint64
	started time.Time
	done    chan struct{}
	outcome Outcome
	err     *apperr.Error
}

func (r *Run) Name() string { return r.name }
func (r *Run) Generation() uint64 { return r.gen }
func (r *Run) Done() <-chan struct{} { return r.done }
func (r *Run) Outcome() Outcome { return r.outcome }

// Err returns the classified failure, or nil unless Outcome is Failed.
func (r *Run) Err() error {
	if r.err == nil {
		return nil
	}
	return *r.err
}

type slot struct {
	generation uint64
	running    bool
	cancel     context.CancelFunc
	run        *Run
}

// Config wires a Core to its collaborators. Dispatcher is required.
type Config struct {
	Owner      string // label used in logs
	Dispatcher loop.Dispatcher
	Sink       ErrorSink
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Classifier *apperr.Classifier
}

// Core is the task and error state shared by every screen controller.
type Core struct {
	id         uuid.UUID
	owner      string
	d          loop.Dispatcher
	sink       ErrorSink
	log        *zap.Logger
	metrics    *metrics.Metrics
	classifier *apperr.Classifier

	slots   map[string]*slot
	loading map[string]struct{}
	err     *apperr.Error
	errTask string
	feed    observe.Feed[Event]
}

// New creates a Core.
func New(cfg Config) *Core {
	if cfg.Dispatcher == nil {
		panic("task: Config.Dispatcher is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = apperr.NewClassifier()
	}
	id := uuid.New()
	return &Core{
		id:         id,
		owner:      cfg.Owner,
		d:          cfg.Dispatcher,
		sink:       cfg.Sink,
		log:        log.With(zap.String("owner", cfg.Owner), zap.String("owner_id", id.String())),
		metrics:    cfg.Metrics,
		classifier: classifier,
		slots:      make(map[string]*slot),
		loading:    make(map[string]struct{}),
	}
}

// ID identifies this Core; slots are keyed by (ID, task name).
func (c *Core) ID() uuid.UUID { return c.id }

// Dispatcher returns the context completions are applied on.
func (c *Core) Dispatcher() loop.Dispatcher { return c.d }

// Subscribe registers fn for Core events.
func (c *Core) Subscribe(fn func(Event)) (unsubscribe func()) { return c.feed.Subscribe(fn) }

// Start runs op under name, superseding any run of the same name already in
// flight. By default the task shows as loading and a failure is classified
// and kept as the screen error.
func (c *Core) Start(name string, op Operation, opts ...Option) *Run {
	return c.start(name, func(ctx context.Context) (func(), error) {
		return nil, op(ctx)
	}, opts)
}

// Load runs fetch like Start and, if the run is still current when it
// succeeds, calls apply with the result on the state-owning context. A
// superseded or cancelled fetch never reaches apply.
func Load[T any](c *Core, name string, fetch func(ctx context.Context) (T, error), apply func(T), opts ...Option) *Run {
	return c.start(name, func(ctx context.Context) (func(), error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func() { apply(v) }, nil
	}, opts)
}

// job is an operation whose successful result is committed on the loop.
type job func(ctx context.Context) (commit func(), err error)

func (c *Core) start(name string, op job, opts []Option) *Run {
	if name == "" {
		name = DefaultName
	}
	o := options{showLoading: true, reportError: true}
	for _, opt := range opts {
		opt(&o)
	}

	s, ok := c.slots[name]
	if !ok {
		s = &slot{}
		c.slots[name] = s
	}
	if s.running {
		s.cancel()
		s.run.outcome = Superseded
		c.log.Debug("superseding task", zap.String("task", name), zap.Uint64("generation", s.generation))
	}

	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		name:    name,
		gen:     s.generation,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	s.running = true
	s.cancel = cancel
	s.run = run

	if o.showLoading {
		c.loading[name] = struct{}{}
	} else {
		delete(c.loading, name)
	}
	c.feed.Emit(Event{Task: name, Kind: EventStarted})

	go func() {
		commit, err := op(ctx)
		c.d.Dispatch(func() { c.complete(run, commit, err, o) })
	}()
	return run
}

func (c *Core) complete(run *Run, commit func(), err error, o options) {
	defer close(run.done)

	s := c.slots[run.name]
	if s == nil || s.generation != run.gen {
		if run.outcome == Pending {
			run.outcome = Superseded
		}
		c.log.Debug("discarding stale task result",
			zap.String("task", run.name),
			zap.Uint64("generation", run.gen),
			zap.Stringer("outcome", run.outcome))
		c.metrics.TaskFinished(run.name, run.outcome.String(), time.Since(run.started))
		return
	}

	s.cancel()
	s.running = false
	s.run = nil
	delete(c.loading, run.name)

	switch {
	case err == nil:
		run.outcome = Succeeded
		if commit != nil {
			commit()
		}
		c.setOnline(true)
		if c.err != nil && c.errTask == run.name {
			c.err = nil
			c.errTask = ""
		}
	case errors.Is(err, context.Canceled):
		run.outcome = Cancelled
	default:
		classified := c.classifier.Classify(err)
		run.outcome = Failed
		run.err = &classified
		c.metrics.ErrorClassified(classified.Kind.String())
		c.log.Info("task failed",
			zap.String("task", run.name),
			zap.Stringer("kind", classified.Kind),
			zap.Error(err))
		if classified.Kind == apperr.KindNoConnection {
			c.setOnline(false)
		}
		c.route(run.name, classified, o)
	}

	c.metrics.TaskFinished(run.name, run.outcome.String(), time.Since(run.started))
	c.feed.Emit(Event{Task: run.name, Kind: EventFinished, Outcome: run.outcome})
}

func (c *Core) setOnline(online bool) {
	if cs, ok := c.sink.(ConnectivitySink); ok {
		cs.SetOnline(online)
	}
}

// route decides where a classified failure surfaces. Unauthorized always
// goes to the sink because no single screen can recover a session.
func (c *Core) route(name string, e apperr.Error, o options) {
	if e.Kind == apperr.KindUnauthorized || o.reportGlobally {
		if c.sink != nil {
			c.sink.HandleError(e)
		}
		return
	}
	if o.reportError {
		c.err = &e
		c.errTask = name
	}
}

// ReportError classifies err and surfaces it exactly as a failed task named
// name would with default options.
func (c *Core) ReportError(name string, err error) {
	if err == nil {
		return
	}
	classified := c.classifier.Classify(err)
	c.metrics.ErrorClassified(classified.Kind.String())
	c.route(name, classified, options{showLoading: true, reportError: true})
	c.feed.Emit(Event{Task: name, Kind: EventErrorChanged})
}

// Cancel stops the named task if it is running. Its result will be
// discarded and it leaves the loading set immediately.
func (c *Core) Cancel(name string) {
	if c.cancelSlot(name) {
		c.feed.Emit(Event{Task: name, Kind: EventCancelled, Outcome: Cancelled})
	}
}

// CancelAll stops every task and empties the loading set. Controllers call
// it on teardown so late completions never touch a dismissed screen.
func (c *Core) CancelAll() {
	names := make([]string, 0, len(c.slots))
	for name := range c.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.cancelSlot(name)
	}
	c.loading = make(map[string]struct{})
	c.feed.Emit(Event{Kind: EventCancelled, Outcome: Cancelled})
}

func (c *Core) cancelSlot(name string) bool {
	s, ok := c.slots[name]
	if !ok || !s.running {
		return false
	}
	s.cancel()
	s.generation++
	s.running = false
	s.run.outcome = Cancelled
	s.run = nil
	delete(c.loading, name)
	c.log.Debug("cancelled task", zap.String("task", name))
	return true
}

// cancelRun cancels name only if run is still the slot's current run.
func (c *Core) cancelRun(run *Run) {
	if s, ok := c.slots[run.name]; ok && s.run == run {
		c.Cancel(run.name)
	}
}

// IsLoading reports whether any task in the loading set is in flight.
func (c *Core) IsLoading() bool { return len(c.loading) > 0 }

// IsTaskLoading reports whether name is in the loading set.
func (c *Core) IsTaskLoading(name string) bool {
	_, ok := c.loading[name]
	return ok
}

// IsRunning reports whether name has a run in flight, loading or not.
func (c *Core) IsRunning(name string) bool {
	s, ok := c.slots[name]
	return ok && s.running
}

// LoadingTasks returns the loading set, sorted.
func (c *Core) LoadingTasks() []string {
	names := make([]string, 0, len(c.loading))
	for name := range c.loading {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns the current screen error.
func (c *Core) Err() (apperr.Error, bool) {
	if c.err == nil {
		return apperr.Error{}, false
	}
	return *c.err, true
}

// ErrorMessage is the user-facing text of the current screen error, or "".
func (c *Core) ErrorMessage() string {
	if c.err == nil {
		return ""
	}
	return c.err.UserMessage()
}

// ClearError dismisses the current screen error.
func (c *Core) ClearError() {
	if c.err == nil {
		return
	}
	c.err = nil
	c.errTask = ""
	c.feed.Emit(Event{Kind: EventErrorChanged})
}
