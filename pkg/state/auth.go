package state

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
)

// ErrEmptyToken is returned by CompleteSignIn for a session without a token.
var ErrEmptyToken = errors.New("state: sign-in returned an empty token")

func (r *Root) setStatus(s AuthStatus) {
	if r.status == s {
		return
	}
	r.log.Info("auth status changed",
		zap.Stringer("from", r.status),
		zap.Stringer("to", s))
	r.status = s
	r.metrics.AuthTransition(s.String())
	r.emit(ChangeAuth)
}

// Restore runs the startup sequence once: read the stored credential, and
// if there is one, confirm it with an identity check. The returned channel
// closes when the sequence has settled. Later calls start nothing and
// return the same channel.
//
// Any identity-check failure leaves the Root unauthenticated and, unless
// KeepCredentialOnTransientFailure applies, clears the stored credential.
// Restore never retries. The global loading flag is set while the identity
// check is in flight, and its outcome updates connectivity.
func (r *Root) Restore(ctx context.Context) <-chan struct{} {
	if r.restoreDone != nil {
		return r.restoreDone
	}
	done := make(chan struct{})
	r.restoreDone = done
	gen := r.authGen

	go func() {
		token, err := r.creds.Read()
		r.d.Dispatch(func() { r.restoreRead(ctx, gen, done, token, err) })
	}()
	return done
}

func (r *Root) restoreRead(ctx context.Context, gen uint64, done chan struct{}, token string, err error) {
	if gen != r.authGen {
		close(done)
		return
	}
	if err != nil {
		r.log.Warn("reading stored credential failed", zap.Error(err))
	}
	if token == "" {
		r.setStatus(StatusUnauthenticated)
		close(done)
		return
	}

	r.token = token
	r.setStatus(StatusLoading)
	r.SetGlobalLoading(true)

	go func() {
		checkCtx := ctx
		if r.restoreTTL > 0 {
			var cancel context.CancelFunc
			checkCtx, cancel = context.WithTimeout(ctx, r.restoreTTL)
			defer cancel()
		}
		user, err := r.identity.Me(checkCtx, token)
		r.d.Dispatch(func() { r.restoreChecked(gen, done, user, err) })
	}()
}

func (r *Root) restoreChecked(gen uint64, done chan struct{}, user research.User, err error) {
	defer close(done)
	r.SetGlobalLoading(false)
	if gen != r.authGen {
		r.log.Debug("discarding restore result overtaken by sign-in or sign-out")
		return
	}

	if err == nil {
		r.SetOnline(true)
		r.user = &user
		r.emit(ChangeUser)
		r.setStatus(StatusAuthenticated)
		return
	}

	classified := r.classifier.Classify(err)
	r.metrics.ErrorClassified(classified.Kind.String())
	if classified.Kind == apperr.KindNoConnection {
		r.SetOnline(false)
	}
	keep := errors.Is(err, context.Canceled) ||
		(r.keepOnBlip && isTransient(classified))
	r.log.Info("session restore failed",
		zap.Stringer("kind", classified.Kind),
		zap.Bool("keep_credential", keep),
		zap.Error(err))

	if !keep {
		r.clearCredential()
	}
	r.token = ""
	r.setStatus(StatusUnauthenticated)
}

func isTransient(e apperr.Error) bool {
	switch e.Kind {
	case apperr.KindNoConnection, apperr.KindTimeout, apperr.KindServerError:
		return true
	}
	return false
}

func (r *Root) clearCredential() {
	if err := r.creds.Clear(); err != nil {
		r.log.Warn("clearing stored credential failed", zap.Error(err))
	}
}

// HandleError is the global error intake. Unauthorized errors sign the
// user out and are not shown; everything else becomes the active error.
func (r *Root) HandleError(err error) {
	if err == nil {
		return
	}
	classified := r.classifier.Classify(err)
	if classified.Kind == apperr.KindUnauthorized {
		r.log.Info("unauthorized response, signing out")
		r.SignOut()
		return
	}
	r.activeError = &classified
	r.emit(ChangeError)
}

// CompleteSignIn stores a new session, persists its token and marks the
// Root authenticated. It overrides a restore still in flight.
func (r *Root) CompleteSignIn(s research.Session) error {
	if s.Token == "" {
		return ErrEmptyToken
	}
	if err := r.creds.Write(s.Token); err != nil {
		// The session still works for this run.
		r.log.Warn("persisting credential failed", zap.Error(err))
	}
	r.authGen++
	r.token = s.Token
	user := s.User
	r.user = &user
	r.emit(ChangeUser)
	r.setStatus(StatusAuthenticated)
	return nil
}

// SignOut clears the session and every piece of per-user state, whatever
// the current status, then runs the OnReset hooks.
func (r *Root) SignOut() {
	r.authGen++
	r.clearCredential()

	r.token = ""
	r.user = nil
	r.watchlist = nil
	r.research = ResearchState{}
	r.activeError = nil
	r.globalLoading = false

	r.emit(ChangeUser)
	r.emit(ChangeWatchlist)
	r.emit(ChangeResearch)
	r.setStatus(StatusUnauthenticated)
	r.resets.Emit(struct{}{})
}
