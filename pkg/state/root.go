package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/loop"
	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
	"gitlab.com/tinyland/lab/research-pulse/pkg/observe"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/toast"
)

// Toast texts for connectivity changes.
const (
	OfflineMessage = "You're offline. Showing the last data we loaded."
	OnlineMessage  = "Back online"
)

// IdentityChecker answers "who am I" for a token. research.Service
// satisfies it.
type IdentityChecker interface {
	Me(ctx context.Context, token string) (research.User, error)
}

// Config wires a Root. Dispatcher, Credentials and Identity are required.
type Config struct {
	Dispatcher  loop.Dispatcher
	Credentials CredentialStore
	Identity    IdentityChecker
	Toasts      *toast.Center // nil creates one on Dispatcher
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Classifier  *apperr.Classifier

	// KeepCredentialOnTransientFailure keeps the stored credential when the
	// startup identity check fails with noConnection, timeout or
	// serverError. The status still becomes unauthenticated.
	KeepCredentialOnTransientFailure bool

	// RestoreTimeout bounds the startup identity check. Zero means no
	// limit beyond the caller's context.
	RestoreTimeout time.Duration
}

// Root is the process-wide client state. All methods except Restore's
// background work run on the Dispatcher's context.
type Root struct {
	d          loop.Dispatcher
	creds      CredentialStore
	identity   IdentityChecker
	toasts     *toast.Center
	log        *zap.Logger
	metrics    *metrics.Metrics
	classifier *apperr.Classifier
	keepOnBlip bool
	restoreTTL time.Duration

	status        AuthStatus
	token         string
	user          *research.User
	watchlist     []research.WatchItem
	research      ResearchState
	online        bool
	globalLoading bool
	activeError   *apperr.Error

	// authGen changes on every sign-in and sign-out so an in-flight
	// restore can tell it has been overtaken.
	authGen     uint64
	restoreDone chan struct{}

	feed   observe.Feed[Change]
	resets observe.Feed[struct{}]
}

// New creates a Root in StatusUnknown, online, with empty sub-states.
func New(cfg Config) *Root {
	if cfg.Dispatcher == nil {
		panic("state: Config.Dispatcher is required")
	}
	if cfg.Credentials == nil || cfg.Identity == nil {
		panic("state: Config.Credentials and Config.Identity are required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	toasts := cfg.Toasts
	if toasts == nil {
		toasts = toast.New(toast.Config{Dispatcher: cfg.Dispatcher, Logger: log, Metrics: cfg.Metrics})
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = apperr.NewClassifier()
	}
	return &Root{
		d:          cfg.Dispatcher,
		creds:      cfg.Credentials,
		identity:   cfg.Identity,
		toasts:     toasts,
		log:        log,
		metrics:    cfg.Metrics,
		classifier: classifier,
		keepOnBlip: cfg.KeepCredentialOnTransientFailure,
		restoreTTL: cfg.RestoreTimeout,
		online:     true,
	}
}

// Subscribe registers fn for state changes.
func (r *Root) Subscribe(fn func(Change)) (unsubscribe func()) { return r.feed.Subscribe(fn) }

// OnReset registers fn to run on every sign-out, after the Root has cleared
// its own per-user state. Screen controllers cancel their tasks and drop
// caches here.
func (r *Root) OnReset(fn func()) (remove func()) {
	return r.resets.Subscribe(func(struct{}) { fn() })
}

func (r *Root) emit(kind ChangeKind) { r.feed.Emit(Change{Kind: kind, Auth: r.status}) }

// Status returns the auth status.
func (r *Root) Status() AuthStatus { return r.status }

// SessionToken returns the token for data-access calls, or "".
func (r *Root) SessionToken() string { return r.token }

// User returns the signed-in account.
func (r *Root) User() (research.User, bool) {
	if r.user == nil {
		return research.User{}, false
	}
	return *r.user, true
}

// Toasts returns the notification center owned by the Root.
func (r *Root) Toasts() *toast.Center { return r.toasts }

// IsOnline reports the last connectivity state passed to SetOnline.
func (r *Root) IsOnline() bool { return r.online }

// GlobalLoading reports the app-wide loading flag.
func (r *Root) GlobalLoading() bool { return r.globalLoading }

// ActiveError returns the error waiting to be presented, if any.
func (r *Root) ActiveError() (apperr.Error, bool) {
	if r.activeError == nil {
		return apperr.Error{}, false
	}
	return *r.activeError, true
}

// ClearError dismisses the active error. Errors never clear themselves.
func (r *Root) ClearError() {
	if r.activeError == nil {
		return
	}
	r.activeError = nil
	r.emit(ChangeError)
}

// SetOnline records connectivity. Going offline shows a warning toast and
// coming back shows an info toast; repeated values are ignored.
func (r *Root) SetOnline(online bool) {
	if r.online == online {
		return
	}
	r.online = online
	if online {
		r.toasts.Show(OnlineMessage, toast.Info)
	} else {
		r.toasts.Show(OfflineMessage, toast.Warning)
	}
	r.log.Info("connectivity changed", zap.Bool("online", online))
	r.emit(ChangeOnline)
}

// SetGlobalLoading sets the app-wide loading flag.
func (r *Root) SetGlobalLoading(loading bool) {
	if r.globalLoading == loading {
		return
	}
	r.globalLoading = loading
	r.emit(ChangeGlobalLoading)
}

// Watchlist returns a copy of the watchlist sub-state.
func (r *Root) Watchlist() []research.WatchItem {
	return append([]research.WatchItem(nil), r.watchlist...)
}

// SetWatchlist replaces the watchlist.
func (r *Root) SetWatchlist(items []research.WatchItem) {
	r.watchlist = append([]research.WatchItem(nil), items...)
	r.emit(ChangeWatchlist)
}

// UpsertWatchItem replaces the item with the same ID, or the same symbol,
// or appends it.
func (r *Root) UpsertWatchItem(item research.WatchItem) {
	for i, it := range r.watchlist {
		if it.ID == item.ID || it.Symbol == item.Symbol {
			r.watchlist[i] = item
			r.emit(ChangeWatchlist)
			return
		}
	}
	r.watchlist = append(r.watchlist, item)
	r.emit(ChangeWatchlist)
}

// RemoveWatchItem drops the item with id and reports whether it was there.
func (r *Root) RemoveWatchItem(id string) bool {
	for i, it := range r.watchlist {
		if it.ID == id {
			r.watchlist = append(r.watchlist[:i:i], r.watchlist[i+1:]...)
			r.emit(ChangeWatchlist)
			return true
		}
	}
	return false
}

// Research returns a copy of the research sub-state.
func (r *Root) Research() ResearchState {
	return ResearchState{
		Subject: r.research.Subject,
		Reports: append([]research.Report(nil), r.research.Reports...),
	}
}

// SelectSubject changes the research subject. Reports for a different
// subject are dropped.
func (r *Root) SelectSubject(symbol string) {
	if r.research.Subject == symbol {
		return
	}
	r.research = ResearchState{Subject: symbol}
	r.emit(ChangeResearch)
}

// SetReports stores reports for the selected subject.
func (r *Root) SetReports(reports []research.Report) {
	r.research.Reports = append([]research.Report(nil), reports...)
	r.emit(ChangeResearch)
}

// Snapshot copies the state for rendering.
func (r *Root) Snapshot() Snapshot {
	s := Snapshot{
		Auth:          r.status,
		Watchlist:     r.Watchlist(),
		Research:      r.Research(),
		Online:        r.online,
		GlobalLoading: r.globalLoading,
		TakenAt:       time.Now(),
	}
	if r.user != nil {
		u := *r.user
		s.User = &u
	}
	if r.activeError != nil {
		s.Error = NewErrorView(*r.activeError)
	}
	if t, ok := r.toasts.Active(); ok {
		s.Toast = &t
	}
	return s
}
