package screens

import (
	"context"
	"errors"
	"strings"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
)

// TaskSignIn submits credentials.
const TaskSignIn = "signIn"

var errBadCredentials = apperr.ValidationFailed("Incorrect email or password")

// SignIn is the sign-in form.
type SignIn struct {
	*base
}

// NewSignIn creates a SignIn controller.
func NewSignIn(d Deps) *SignIn {
	return &SignIn{base: newBase("signin", d)}
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return apperr.ValidationFailed("Enter your email and password")
	}
	if !strings.Contains(email, "@") {
		return apperr.ValidationFailed("Enter a valid email address")
	}
	return nil
}

// signIn calls the backend. A 401 here means wrong credentials, not a dead
// session, so it is turned into a validation error before it can reach the
// Root and trigger a sign-out.
func (s *SignIn) signIn(email, password string) func(ctx context.Context) (research.Session, error) {
	return func(ctx context.Context) (research.Session, error) {
		sess, err := s.svc.SignIn(ctx, strings.TrimSpace(email), password)
		if err != nil && apperr.Classify(err).Kind == apperr.KindUnauthorized {
			return research.Session{}, errBadCredentials
		}
		return sess, err
	}
}

// Submit validates the form and signs in. It returns nil when validation
// fails, after setting the screen error.
func (s *SignIn) Submit(email, password string) *task.Run {
	if err := validateCredentials(email, password); err != nil {
		s.core.ReportError(TaskSignIn, err)
		return nil
	}
	return task.Load(s.core, TaskSignIn, s.signIn(email, password), s.complete)
}

func (s *SignIn) complete(sess research.Session) {
	if err := s.root.CompleteSignIn(sess); err != nil {
		s.core.ReportError(TaskSignIn, err)
	}
}

// SubmitAndWait is Submit for callers off the state context, such as the
// CLI. It returns nil once the Root is authenticated, or the classified
// failure.
func (s *SignIn) SubmitAndWait(ctx context.Context, email, password string) error {
	d := s.core.Dispatcher()
	if err := validateCredentials(email, password); err != nil {
		d.Dispatch(func() { s.core.ReportError(TaskSignIn, err) })
		return err
	}

	sess, ok := task.Await(ctx, s.core, TaskSignIn, s.signIn(email, password))
	if !ok {
		return s.lastError(ctx)
	}

	done := make(chan error, 1)
	d.Dispatch(func() { done <- s.root.CompleteSignIn(sess) })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lastError fetches the screen error from the state context.
func (s *SignIn) lastError(ctx context.Context) error {
	out := make(chan error, 1)
	s.core.Dispatcher().Dispatch(func() {
		if e, ok := s.core.Err(); ok {
			out <- e
			return
		}
		out <- errors.New("sign-in did not complete")
	})
	select {
	case err := <-out:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
