package task

import (
	"context"
	"errors"
	"time"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
)

// Await starts op on c like Start and blocks until its completion has been
// applied, returning the value on success. Failure, cancellation and
// supersession all return the zero value and false. Await dispatches the
// start itself, so it must be called from a goroutine other than the
// state-owning context. If ctx ends first, the run is cancelled.
func Await[T any](ctx context.Context, c *Core, name string, op func(ctx context.Context) (T, error), opts ...Option) (T, bool) {
	var zero, value T

	started := make(chan *Run, 1)
	c.d.Dispatch(func() {
		started <- Load(c, name, op, func(v T) { value = v }, opts...)
	})

	var run *Run
	select {
	case run = <-started:
	case <-ctx.Done():
		// The start job precedes this one on the loop, so the run is buffered.
		c.d.Dispatch(func() {
			select {
			case r := <-started:
				c.cancelRun(r)
			default:
			}
		})
		return zero, false
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		c.d.Dispatch(func() { c.cancelRun(run) })
		return zero, false
	}

	if run.Outcome() != Succeeded {
		return zero, false
	}
	return value, true
}

// RetryPolicy bounds Retrying.
type RetryPolicy struct {
	Attempts int           // total attempts, at least 1
	Delay    time.Duration // wait between attempts for timeout and server errors
	MaxWait  time.Duration // cap on any single wait, 0 for none

	// Classifier decides which failures are retryable. Nil uses the
	// default rules.
	Classifier *apperr.Classifier
}

// Retrying wraps op so that retryable failures are repeated. Rate-limited
// failures wait for the server's Retry-After; other retryable failures wait
// policy.Delay. Non-retryable failures and cancellation return immediately.
func Retrying(op Operation, policy RetryPolicy) Operation {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	classify := apperr.Classify
	if policy.Classifier != nil {
		classify = policy.Classifier.Classify
	}
	return func(ctx context.Context) error {
		var err error
		for i := 0; i < attempts; i++ {
			if err = op(ctx); err == nil {
				return nil
			}
			if errors.Is(err, context.Canceled) || i == attempts-1 {
				return err
			}
			classified := classify(err)
			if !classified.Retryable() {
				return err
			}

			wait := policy.Delay
			if classified.Kind == apperr.KindRateLimited && classified.RetryAfter > 0 {
				wait = time.Duration(classified.RetryAfter) * time.Second
			}
			if policy.MaxWait > 0 && wait > policy.MaxWait {
				wait = policy.MaxWait
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		return err
	}
}
