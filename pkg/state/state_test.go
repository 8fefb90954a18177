package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/credstore"
	"gitlab.com/tinyland/lab/research-pulse/pkg/loop"
	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
	"gitlab.com/tinyland/lab/research-pulse/pkg/toast"
)

type harness struct {
	loop     *loop.Loop
	root     *Root
	creds    *credstore.Memory
	service  *research.Mock
	statuses []AuthStatus
}

func newHarness(t *testing.T, stored string, opts ...func(*Config)) *harness {
	t.Helper()
	return newHarnessWithMock(t, stored, research.NewMock(), opts...)
}

func newHarnessWithMock(t *testing.T, stored string, svc *research.Mock, opts ...func(*Config)) *harness {
	t.Helper()
	l := loop.New(zap.NewNop())
	t.Cleanup(l.Close)

	h := &harness{loop: l, creds: credstore.NewMemory(stored), service: svc}
	cfg := Config{
		Dispatcher:  l,
		Credentials: h.creds,
		Identity:    svc,
		Logger:      zap.NewNop(),
		Metrics:     metrics.New(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.root = New(cfg)
	h.on(func() {
		h.root.Subscribe(func(c Change) {
			if c.Kind == ChangeAuth {
				h.statuses = append(h.statuses, c.Auth)
			}
		})
	})
	return h
}

func (h *harness) on(fn func()) { h.loop.Do(fn) }

func (h *harness) restore(t *testing.T) {
	t.Helper()
	var done <-chan struct{}
	h.on(func() { done = h.root.Restore(context.Background()) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("restore did not settle")
	}
}

// signedIn returns a harness that has restored an existing session.
func signedIn(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, research.MockToken)
	h.restore(t)
	h.on(func() {
		assert.Equal(t, StatusAuthenticated, h.root.Status())
		h.root.SetWatchlist([]research.WatchItem{{ID: "w1", Symbol: "AAPL"}})
		h.root.SelectSubject("AAPL")
		h.root.SetReports([]research.Report{{ID: "r1", Symbol: "AAPL"}})
	})
	return h
}

func TestRestoreWithoutCredentialSkipsLoading(t *testing.T) {
	h := newHarness(t, "")
	h.on(func() { assert.Equal(t, StatusUnknown, h.root.Status()) })

	h.restore(t)

	assert.Equal(t, []AuthStatus{StatusUnauthenticated}, h.statuses)
	assert.Zero(t, h.service.CallCount(research.MethodMe))
}

func TestRestoreWithValidCredential(t *testing.T) {
	h := newHarness(t, research.MockToken)
	h.restore(t)

	assert.Equal(t, []AuthStatus{StatusLoading, StatusAuthenticated}, h.statuses)
	h.on(func() {
		u, ok := h.root.User()
		assert.True(t, ok)
		assert.Equal(t, "usr_mock", u.ID)
		assert.Equal(t, research.MockToken, h.root.SessionToken())
	})
}

func TestRestoreRunsOnce(t *testing.T) {
	h := newHarness(t, research.MockToken)
	h.restore(t)

	var again <-chan struct{}
	h.on(func() { again = h.root.Restore(context.Background()) })
	select {
	case <-again:
	default:
		t.Fatal("second Restore must return a closed channel")
	}
	assert.Equal(t, int64(1), h.service.CallCount(research.MethodMe))
}

func TestRestoreFailurePolicy(t *testing.T) {
	tests := []struct {
		name      string
		fault     error
		keepBlips bool
		wantKept  bool
	}{
		{"invalid token", &apperr.StatusError{Code: 401}, false, false},
		{"invalid token keep policy", &apperr.StatusError{Code: 401}, true, false},
		{"timeout fails closed", &apperr.TransportError{Reason: apperr.TimedOut}, false, false},
		{"timeout kept", &apperr.TransportError{Reason: apperr.TimedOut}, true, true},
		{"offline kept", &apperr.TransportError{Reason: apperr.NotConnected}, true, true},
		{"server error kept", &apperr.StatusError{Code: 503}, true, true},
		{"forbidden cleared", &apperr.StatusError{Code: 403}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := research.NewMock(research.WithFault(research.MethodMe, tt.fault))
			h := newHarnessWithMock(t, research.MockToken, svc, func(c *Config) {
				c.KeepCredentialOnTransientFailure = tt.keepBlips
			})
			h.restore(t)

			assert.Equal(t, []AuthStatus{StatusLoading, StatusUnauthenticated}, h.statuses)
			h.on(func() {
				assert.Empty(t, h.root.SessionToken())
				_, hasUser := h.root.User()
				assert.False(t, hasUser)
				_, hasErr := h.root.ActiveError()
				assert.False(t, hasErr, "restore failures are not presented")
			})
			if tt.wantKept {
				assert.Equal(t, research.MockToken, h.creds.Token())
			} else {
				assert.Empty(t, h.creds.Token())
			}
			assert.Equal(t, int64(1), svc.CallCount(research.MethodMe), "restore never retries")
		})
	}
}

func TestRestoreCancelledKeepsCredential(t *testing.T) {
	h := newHarnessWithMock(t, research.MockToken, research.NewMock(research.WithLatency(time.Hour)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var done <-chan struct{}
	h.on(func() { done = h.root.Restore(ctx) })
	<-done

	assert.Equal(t, research.MockToken, h.creds.Token())
	h.on(func() { assert.Equal(t, StatusUnauthenticated, h.root.Status()) })
}

func TestRestoreReadFailureIsUnauthenticated(t *testing.T) {
	h := newHarness(t, research.MockToken)
	h.creds.FailRead = errors.New("keychain locked")
	h.restore(t)
	assert.Equal(t, []AuthStatus{StatusUnauthenticated}, h.statuses)
}

func TestRestoreTimeout(t *testing.T) {
	svc := research.NewMock(research.WithHook(research.MethodMe, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	h := newHarnessWithMock(t, research.MockToken, svc, func(c *Config) {
		c.RestoreTimeout = 10 * time.Millisecond
	})
	h.restore(t)

	h.on(func() { assert.Equal(t, StatusUnauthenticated, h.root.Status()) })
	assert.Empty(t, h.creds.Token(), "deadline is a timeout and fails closed")
}

func TestSignInDuringRestoreWins(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	svc := research.NewMock(research.WithHook(research.MethodMe, func(context.Context) error {
		close(entered)
		<-release
		return &apperr.StatusError{Code: 401}
	}))
	h := newHarnessWithMock(t, "stale", svc)

	var done <-chan struct{}
	h.on(func() { done = h.root.Restore(context.Background()) })
	<-entered
	h.on(func() {
		assert.NoError(t, h.root.CompleteSignIn(research.Session{Token: "fresh", User: research.User{ID: "u2"}}))
	})
	close(release)
	<-done

	h.on(func() {
		assert.Equal(t, StatusAuthenticated, h.root.Status())
		assert.Equal(t, "fresh", h.root.SessionToken())
	})
	assert.Equal(t, "fresh", h.creds.Token())
}

func TestUnauthorizedSignsOutSilently(t *testing.T) {
	h := signedIn(t)
	var resets int
	h.on(func() {
		h.root.OnReset(func() { resets++ })
		h.root.HandleError(&apperr.StatusError{Code: 401})
	})

	h.on(func() {
		assert.Equal(t, StatusUnauthenticated, h.root.Status())
		assert.Empty(t, h.root.SessionToken())
		_, hasErr := h.root.ActiveError()
		assert.False(t, hasErr)
		assert.Empty(t, h.root.Watchlist())
		assert.Equal(t, ResearchState{}, h.root.Research())
		assert.Equal(t, 1, resets)
	})
	assert.Empty(t, h.creds.Token())
}

func TestHandleErrorStoresOtherKinds(t *testing.T) {
	h := signedIn(t)
	h.on(func() {
		h.root.HandleError(&apperr.APIFault{Code: "INSUFFICIENT_CREDITS", Required: 3, Available: 1})
		got, ok := h.root.ActiveError()
		assert.True(t, ok)
		assert.Equal(t, apperr.InsufficientCredits(3, 1), got)
		assert.Equal(t, StatusAuthenticated, h.root.Status())

		h.root.HandleError(nil)
		_, ok = h.root.ActiveError()
		assert.True(t, ok, "errors stay until cleared")

		h.root.ClearError()
		_, ok = h.root.ActiveError()
		assert.False(t, ok)
	})
}

func TestSignOutFromAnyStatus(t *testing.T) {
	for _, prior := range []AuthStatus{StatusUnknown, StatusLoading, StatusAuthenticated, StatusUnauthenticated} {
		t.Run(prior.String(), func(t *testing.T) {
			h := newHarness(t, "tok")
			h.on(func() {
				h.root.status = prior
				h.root.token = "tok"
				h.root.watchlist = []research.WatchItem{{ID: "w"}}
				h.root.research = ResearchState{Subject: "AAPL"}
				h.root.SetGlobalLoading(true)
				h.root.HandleError(&apperr.StatusError{Code: 500})

				h.root.SignOut()

				assert.Equal(t, StatusUnauthenticated, h.root.Status())
				assert.Empty(t, h.root.SessionToken())
				assert.Empty(t, h.root.Watchlist())
				assert.Equal(t, ResearchState{}, h.root.Research())
				assert.False(t, h.root.GlobalLoading())
				_, hasErr := h.root.ActiveError()
				assert.False(t, hasErr)
			})
			assert.Empty(t, h.creds.Token())
		})
	}
}

func TestCompleteSignIn(t *testing.T) {
	h := newHarness(t, "")
	h.restore(t)

	h.on(func() {
		assert.ErrorIs(t, h.root.CompleteSignIn(research.Session{}), ErrEmptyToken)
		assert.Equal(t, StatusUnauthenticated, h.root.Status())

		assert.NoError(t, h.root.CompleteSignIn(research.Session{Token: "t1", User: research.User{ID: "u1"}}))
		assert.Equal(t, StatusAuthenticated, h.root.Status())
		u, _ := h.root.User()
		assert.Equal(t, "u1", u.ID)
	})
	assert.Equal(t, "t1", h.creds.Token())
	assert.Equal(t, []AuthStatus{StatusUnauthenticated, StatusAuthenticated}, h.statuses)
}

func TestCompleteSignInSurvivesPersistFailure(t *testing.T) {
	h := newHarness(t, "")
	h.creds.FailWrite = errors.New("disk full")
	h.on(func() {
		assert.NoError(t, h.root.CompleteSignIn(research.Session{Token: "t1"}))
		assert.Equal(t, "t1", h.root.SessionToken())
	})
}

func TestOnlineToasts(t *testing.T) {
	h := newHarness(t, "")
	h.on(func() {
		h.root.SetOnline(true)
		_, shown := h.root.Toasts().Active()
		assert.False(t, shown, "no toast without a change")

		h.root.SetOnline(false)
		got, _ := h.root.Toasts().Active()
		assert.Equal(t, toast.Warning, got.Kind)
		assert.Equal(t, OfflineMessage, got.Message)
		assert.False(t, h.root.IsOnline())

		h.root.SetOnline(true)
		got, _ = h.root.Toasts().Active()
		assert.Equal(t, toast.Info, got.Kind)
		assert.Equal(t, OnlineMessage, got.Message)
	})
}

func TestActiveErrorAndToastCoexist(t *testing.T) {
	h := newHarness(t, "")
	h.on(func() {
		h.root.HandleError(&apperr.StatusError{Code: 500})
		h.root.SetOnline(false)
		s := h.root.Snapshot()
		assert.NotNil(t, s.Toast)
		if assert.NotNil(t, s.Error) {
			assert.Equal(t, "server_error", s.Error.Kind)
		}
	})
}

func TestWatchlistMutators(t *testing.T) {
	h := newHarness(t, "")
	h.on(func() {
		h.root.SetWatchlist([]research.WatchItem{{ID: "a", Symbol: "AAPL"}})
		h.root.UpsertWatchItem(research.WatchItem{ID: "b", Symbol: "MSFT"})
		h.root.UpsertWatchItem(research.WatchItem{ID: "a", Symbol: "AAPL", Price: 1})
		if assert.Len(t, h.root.Watchlist(), 2) {
			assert.Equal(t, 1.0, h.root.Watchlist()[0].Price)
		}

		assert.True(t, h.root.RemoveWatchItem("a"))
		assert.False(t, h.root.RemoveWatchItem("a"))
		assert.Equal(t, "MSFT", h.root.Watchlist()[0].Symbol)
	})
}

func TestSelectSubjectDropsOtherReports(t *testing.T) {
	h := newHarness(t, "")
	h.on(func() {
		h.root.SelectSubject("AAPL")
		h.root.SetReports([]research.Report{{ID: "r1"}})
		h.root.SelectSubject("AAPL")
		assert.Len(t, h.root.Research().Reports, 1)

		h.root.SelectSubject("NVDA")
		assert.Equal(t, ResearchState{Subject: "NVDA"}, h.root.Research())
	})
}

func TestSnapshotIsACopyWithoutToken(t *testing.T) {
	h := signedIn(t)
	var s Snapshot
	h.on(func() { s = h.root.Snapshot() })

	s.Watchlist[0].Symbol = "MUTATED"
	h.on(func() { assert.Equal(t, "AAPL", h.root.Watchlist()[0].Symbol) })

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), research.MockToken)
	assert.Contains(t, string(data), `"auth":"authenticated"`)
}

// A screen task that hits a 401 escalates through the Root even though the
// screen asked for local error reporting.
func TestTaskUnauthorizedReachesRoot(t *testing.T) {
	h := signedIn(t)
	var core *task.Core
	h.on(func() {
		core = task.New(task.Config{Owner: "dashboard", Dispatcher: h.loop, Sink: h.root})
	})

	var run *task.Run
	h.on(func() {
		run = core.Start("list", func(ctx context.Context) error {
			_, err := h.service.Watchlist(ctx, "revoked")
			return err
		})
	})
	<-run.Done()

	h.on(func() {
		assert.Equal(t, StatusUnauthenticated, h.root.Status())
		_, hasErr := h.root.ActiveError()
		assert.False(t, hasErr)
		assert.Empty(t, core.ErrorMessage())
	})
}

func TestDashboardTimeoutStaysLocal(t *testing.T) {
	h := signedIn(t)
	var core *task.Core
	h.on(func() {
		core = task.New(task.Config{Owner: "dashboard", Dispatcher: h.loop, Sink: h.root})
	})

	var run *task.Run
	h.on(func() {
		run = core.Start("loadDashboard", func(context.Context) error {
			return &apperr.TransportError{Reason: apperr.TimedOut}
		})
	})
	<-run.Done()

	h.on(func() {
		assert.NotEmpty(t, core.ErrorMessage())
		assert.False(t, core.IsLoading())
		assert.Equal(t, StatusAuthenticated, h.root.Status())
		_, hasErr := h.root.ActiveError()
		assert.False(t, hasErr)
	})
}

func TestRestoreSetsGlobalLoadingDuringIdentityCheck(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	svc := research.NewMock(research.WithHook(research.MethodMe, func(context.Context) error {
		close(entered)
		<-release
		return nil
	}))
	h := newHarnessWithMock(t, research.MockToken, svc)

	var done <-chan struct{}
	h.on(func() {
		assert.False(t, h.root.GlobalLoading())
		done = h.root.Restore(context.Background())
	})
	<-entered
	h.on(func() {
		assert.True(t, h.root.GlobalLoading())
		assert.True(t, h.root.Snapshot().GlobalLoading)
	})
	close(release)
	<-done

	h.on(func() {
		assert.False(t, h.root.GlobalLoading())
		assert.Equal(t, StatusAuthenticated, h.root.Status())
	})
}

func TestRestoreWithoutCredentialNeverSetsGlobalLoading(t *testing.T) {
	h := newHarness(t, "")
	var changes []ChangeKind
	h.on(func() {
		h.root.Subscribe(func(c Change) { changes = append(changes, c.Kind) })
	})
	h.restore(t)
	assert.NotContains(t, changes, ChangeGlobalLoading)
}

func TestRestoreConnectivity(t *testing.T) {
	svc := research.NewMock(research.WithFault(research.MethodMe, &apperr.TransportError{Reason: apperr.NotConnected}))
	h := newHarnessWithMock(t, research.MockToken, svc)
	h.restore(t)

	h.on(func() {
		assert.False(t, h.root.IsOnline())
		assert.False(t, h.root.GlobalLoading())
		got, _ := h.root.Toasts().Active()
		assert.Equal(t, OfflineMessage, got.Message)
	})
}

// Task outcomes drive the Root's connectivity flag: a connection failure
// takes it offline and the next success brings it back.
func TestTaskOutcomesUpdateConnectivity(t *testing.T) {
	h := signedIn(t)
	var core *task.Core
	h.on(func() {
		core = task.New(task.Config{Owner: "dashboard", Dispatcher: h.loop, Sink: h.root})
	})

	start := func(err error) {
		var run *task.Run
		h.on(func() {
			run = core.Start("list", func(context.Context) error { return err })
		})
		<-run.Done()
	}

	start(&apperr.TransportError{Reason: apperr.NotConnected})
	h.on(func() {
		assert.False(t, h.root.IsOnline())
		got, _ := h.root.Toasts().Active()
		assert.Equal(t, OfflineMessage, got.Message)
		assert.NotEmpty(t, core.ErrorMessage(), "the screen still reports the failure")
	})

	start(&apperr.StatusError{Code: 500})
	h.on(func() { assert.False(t, h.root.IsOnline(), "other failures leave connectivity alone") })

	start(nil)
	h.on(func() {
		assert.True(t, h.root.IsOnline())
		got, _ := h.root.Toasts().Active()
		assert.Equal(t, toast.Info, got.Kind)
		assert.Equal(t, OnlineMessage, got.Message)
	})
}
