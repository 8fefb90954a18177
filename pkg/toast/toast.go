// Package toast implements the single-slot transient notification center.
package toast

import (
	"time"

	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/loop"
	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
	"gitlab.com/tinyland/lab/research-pulse/pkg/observe"
)

// DefaultDelay is how long a toast stays up when Config.Delay is zero.
const DefaultDelay = 3 * time.Second

// Kind styles a toast.
type Kind int

const (
	Info Kind = iota
	Success
	Error
	Warning
)

func (k Kind) String() string {
	switch k {
	case Info:
		return "info"
	case Success:
		return "success"
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Toast is one notification. ID increases with every Show and is what the
// expiry timer checks before clearing.
type Toast struct {
	ID      uint64 `json:"-"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Config wires a Center. Dispatcher is required.
type Config struct {
	Dispatcher loop.Dispatcher
	Delay      time.Duration
	AfterFunc  AfterFunc // nil uses time.AfterFunc
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Center holds at most one active toast. A new toast replaces the current
// one immediately. All methods must be called on the state-owning context.
type Center struct {
	d         loop.Dispatcher
	delay     time.Duration
	afterFunc AfterFunc
	log       *zap.Logger
	metrics   *metrics.Metrics

	seq    uint64
	active *Toast
	stop   func() bool
	feed   observe.Feed[*Toast]
}

// New creates a Center.
func New(cfg Config) *Center {
	if cfg.Dispatcher == nil {
		panic("toast: Config.Dispatcher is required")
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = timeAfterFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Center{
		d:         cfg.Dispatcher,
		delay:     cfg.Delay,
		afterFunc: cfg.AfterFunc,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// Show replaces the active toast and schedules its dismissal.
func (c *Center) Show(message string, kind Kind) Toast {
	if c.stop != nil {
		c.stop()
	}
	c.seq++
	t := Toast{ID: c.seq, Message: message, Kind: kind}
	c.active = &t

	id := t.ID
	c.stop = c.afterFunc(c.delay, func() {
		c.d.Dispatch(func() { c.expire(id) })
	})

	c.metrics.ToastShown(kind.String())
	c.log.Debug("toast shown", zap.Uint64("id", id), zap.Stringer("kind", kind))
	c.feed.Emit(c.snapshot())
	return t
}

// expire clears the toast only if it is still the one the timer was set for.
func (c *Center) expire(id uint64) {
	if c.active == nil || c.active.ID != id {
		return
	}
	c.clear()
}

// Dismiss clears the active toast now.
func (c *Center) Dismiss() {
	if c.active == nil {
		return
	}
	if c.stop != nil {
		c.stop()
	}
	c.clear()
}

func (c *Center) clear() {
	c.active = nil
	c.stop = nil
	c.feed.Emit(nil)
}

// Active returns the toast on screen, if any.
func (c *Center) Active() (Toast, bool) {
	if c.active == nil {
		return Toast{}, false
	}
	return *c.active, true
}

// Subscribe registers fn for toast changes. fn receives nil when the toast
// is cleared.
func (c *Center) Subscribe(fn func(*Toast)) (unsubscribe func()) {
	return c.feed.Subscribe(fn)
}

func (c *Center) snapshot() *Toast {
	if c.active == nil {
		return nil
	}
	t := *c.active
	return &t
}
