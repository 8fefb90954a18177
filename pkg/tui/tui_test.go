package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/credstore"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/screens"
	"gitlab.com/tinyland/lab/research-pulse/pkg/state"
)

// fakeProgram stands in for *tea.Program. The test goroutine plays the
// update loop by draining msgs into Model.Update.
type fakeProgram struct {
	msgs chan tea.Msg
	done chan struct{}
}

func newFakeProgram(t *testing.T) *fakeProgram {
	p := &fakeProgram{msgs: make(chan tea.Msg, 256), done: make(chan struct{})}
	t.Cleanup(func() { close(p.done) })
	return p
}

func (p *fakeProgram) Send(msg tea.Msg) {
	select {
	case p.msgs <- msg:
	case <-p.done:
	}
}

// exec runs cmd the way Bubbletea does and feeds its result back.
func (p *fakeProgram) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				p.exec(c)
			}
			return
		}
		if msg != nil {
			p.Send(msg)
		}
	}()
}

type harness struct {
	t    *testing.T
	p    *fakeProgram
	root *state.Root
	svc  *research.Mock
	m    Model
}

func newHarness(t *testing.T, token string, opts ...research.MockOption) *harness {
	t.Helper()
	p := newFakeProgram(t)
	bridge := NewBridge()
	bridge.Attach(p)

	svc := research.NewMock(opts...)
	root := state.New(state.Config{
		Dispatcher:  bridge,
		Credentials: credstore.NewMemory(token),
		Identity:    svc,
	})
	m := New(context.Background(), screens.Deps{
		Dispatcher: bridge,
		Root:       root,
		Service:    svc,
		Logger:     zap.NewNop(),
	})
	h := &harness{t: t, p: p, root: root, svc: svc, m: m}
	h.update(tea.WindowSizeMsg{Width: 100, Height: 30})
	p.exec(h.m.Init())
	return h
}

func (h *harness) update(msg tea.Msg) {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	h.p.exec(cmd)
}

func (h *harness) key(s string) {
	switch s {
	case "enter":
		h.update(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		h.update(tea.KeyMsg{Type: tea.KeyEsc})
	case "tab":
		h.update(tea.KeyMsg{Type: tea.KeyTab})
	case "down":
		h.update(tea.KeyMsg{Type: tea.KeyDown})
	default:
		h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// pump processes messages until cond holds.
func (h *harness) pump(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case msg := <-h.p.msgs:
			h.update(msg)
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func signedIn(t *testing.T, opts ...research.MockOption) *harness {
	h := newHarness(t, research.MockToken, opts...)
	h.pump("dashboard", func() bool {
		_, ok := h.m.c.dashboard.Summary()
		return h.m.Screen() == ScreenDashboard && ok && !h.m.c.dashboard.IsLoading()
	})
	return h
}

func TestStartupRestoresSessionAndLoadsDashboard(t *testing.T) {
	h := signedIn(t, research.WithWatchlist("AAPL", "NVDA"))

	assert.Equal(t, state.StatusAuthenticated, h.root.Status())
	assert.Len(t, h.m.c.dashboard.Watchlist(), 2)
	assert.Contains(t, h.m.View(), "AAPL")
}

func TestStartupWithoutCredentialShowsSignIn(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, ScreenStartup, h.m.Screen())

	h.pump("sign-in", func() bool { return h.m.Screen() == ScreenSignIn })
	assert.Contains(t, h.m.View(), "Sign in")
}

func TestSignInFlow(t *testing.T) {
	h := newHarness(t, "")
	h.pump("sign-in", func() bool { return h.m.Screen() == ScreenSignIn })

	h.typeText("q@example.com")
	h.key("enter") // moves to password
	h.typeText("hunter2")
	assert.NotContains(t, h.m.View(), "hunter2")

	h.key("enter")
	h.pump("dashboard", func() bool { return h.m.Screen() == ScreenDashboard })

	u, ok := h.root.User()
	require.True(t, ok)
	assert.Equal(t, "q@example.com", u.Email)
	assert.Empty(t, h.m.password)
}

func TestSignInValidationStaysOnForm(t *testing.T) {
	h := newHarness(t, "")
	h.pump("sign-in", func() bool { return h.m.Screen() == ScreenSignIn })

	h.typeText("nobody")
	h.key("tab")
	h.key("enter")

	assert.Equal(t, ScreenSignIn, h.m.Screen())
	assert.NotEmpty(t, h.m.screenError())

	h.key("esc")
	assert.Empty(t, h.m.screenError())
}

func TestQuitKeys(t *testing.T) {
	h := signedIn(t)

	_, cmd := h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = h.m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSearchTypesQInsteadOfQuitting(t *testing.T) {
	h := signedIn(t)
	h.key("/")
	require.Equal(t, ScreenSearch, h.m.Screen())

	next, cmd := h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
	assert.Equal(t, "q", next.(Model).query)
}

func TestSearchOpensDetail(t *testing.T) {
	h := signedIn(t)
	h.key("/")
	h.typeText("apple")
	h.pump("results", func() bool { return len(h.m.c.search.Results()) > 0 })
	assert.Contains(t, h.m.View(), "/apple_")

	h.key("enter")
	require.Equal(t, ScreenDetail, h.m.Screen())
	h.pump("series", func() bool {
		_, ok := h.m.c.series.Current()
		return ok && !h.m.c.reports.IsLoading()
	})
	assert.Equal(t, "AAPL", h.m.c.series.Query().Symbol)
	assert.NotEmpty(t, h.m.c.reports.Current())

	h.key("m")
	assert.Equal(t, research.MetricPE, h.m.c.series.Query().Metric)
	h.pump("pe series", func() bool {
		s, ok := h.m.c.series.Current()
		return ok && s.Metric == research.MetricPE
	})

	h.key("p")
	assert.Equal(t, research.Period5Y, h.m.c.series.Query().Period)

	h.key("esc")
	assert.Equal(t, ScreenDashboard, h.m.Screen())
}

func TestAddFromSearchShowsToast(t *testing.T) {
	h := signedIn(t)
	h.key("/")
	h.typeText("tsla")
	h.pump("results", func() bool { return len(h.m.c.search.Results()) > 0 })

	h.key("tab")
	h.pump("watch item", func() bool { return len(h.root.Watchlist()) == 1 })

	_, ok := h.root.Toasts().Active()
	assert.True(t, ok)
	assert.Contains(t, h.m.View(), "TSLA")
}

func TestUnauthorizedReturnsToSignIn(t *testing.T) {
	h := signedIn(t, research.WithWatchlist("AAPL"))
	h.svc.SetFault(research.MethodReports, &apperr.StatusError{Code: 401})

	h.key("enter")
	h.pump("sign-in", func() bool { return h.m.Screen() == ScreenSignIn })
	assert.Equal(t, state.StatusUnauthenticated, h.root.Status())
	assert.Empty(t, h.root.Watchlist())
}

func TestSignOutKey(t *testing.T) {
	h := signedIn(t)
	h.key("x")
	assert.Equal(t, ScreenSignIn, h.m.Screen())
	assert.Equal(t, state.StatusUnauthenticated, h.root.Status())
}

func TestRemoveWatchItem(t *testing.T) {
	h := signedIn(t, research.WithWatchlist("AAPL", "NVDA"))
	h.key("down")
	h.key("d")
	h.pump("removal", func() bool { return len(h.root.Watchlist()) == 1 })
	assert.Equal(t, "AAPL", h.root.Watchlist()[0].Symbol)
	assert.Equal(t, 0, h.m.cursor)
}

func TestDashboardErrorIsInline(t *testing.T) {
	h := signedIn(t)
	h.svc.SetFault(research.MethodMarketSummary, &apperr.StatusError{Code: 503})

	h.key("r")
	h.pump("error", func() bool { return h.m.screenError() != "" })
	assert.Equal(t, ScreenDashboard, h.m.Screen())
	_, global := h.root.ActiveError()
	assert.False(t, global)

	h.key("esc")
	assert.Empty(t, h.m.screenError())
}

func TestViewFitsTerminal(t *testing.T) {
	h := signedIn(t, research.WithWatchlist("AAPL", "NVDA", "KO"))
	h.root.SetOnline(false)

	view := h.m.View()
	lines := strings.Split(view, "\n")
	assert.Len(t, lines, 30)
	for i, line := range lines {
		assert.LessOrEqual(t, lipgloss.Width(line), 100, "line %d", i)
	}
	assert.Contains(t, view, "offline")
}

func TestViewBeforeResizeIsEmpty(t *testing.T) {
	m := Model{}
	assert.Empty(t, m.View())
}

func TestBridgeQueuesUntilAttached(t *testing.T) {
	b := NewBridge()
	ran := 0
	b.Dispatch(func() { ran++ })
	b.Dispatch(func() { ran++ })

	p := newFakeProgram(t)
	b.Attach(p)
	for i := 0; i < 2; i++ {
		select {
		case msg := <-p.msgs:
			msg.(applyMsg).fn()
		case <-time.After(5 * time.Second):
			t.Fatal("queued dispatch not delivered")
		}
	}
	assert.Equal(t, 2, ran)
}

// slowSender holds the first Send until released.
type slowSender struct {
	*fakeProgram
	release chan struct{}
	once    sync.Once
}

func (s *slowSender) Send(msg tea.Msg) {
	s.once.Do(func() { <-s.release })
	s.fakeProgram.Send(msg)
}

func TestBridgeKeepsOrderWhileFlushing(t *testing.T) {
	b := NewBridge()
	var order []string
	b.Dispatch(func() { order = append(order, "queued 1") })
	b.Dispatch(func() { order = append(order, "queued 2") })

	s := &slowSender{fakeProgram: newFakeProgram(t), release: make(chan struct{})}
	b.Attach(s)
	b.Dispatch(func() { order = append(order, "after attach") })
	close(s.release)

	for i := 0; i < 3; i++ {
		select {
		case msg := <-s.msgs:
			msg.(applyMsg).fn()
		case <-time.After(5 * time.Second):
			t.Fatal("dispatch not delivered")
		}
	}
	assert.Equal(t, []string{"queued 1", "queued 2", "after attach"}, order)

	b.Dispatch(func() { order = append(order, "direct") })
	select {
	case msg := <-s.msgs:
		msg.(applyMsg).fn()
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch not delivered")
	}
	assert.Equal(t, "direct", order[3])
}

func TestSparkline(t *testing.T) {
	assert.Empty(t, sparkline(nil, 10))
	assert.Empty(t, sparkline([]float64{1}, 0))

	line := sparkline([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 8)
	assert.Equal(t, "▁▂▃▄▅▆▇█", line)

	long := make([]float64, 100)
	for i := range long {
		long[i] = float64(i)
	}
	assert.Len(t, []rune(sparkline(long, 20)), 20)

	flat := sparkline([]float64{3, 3, 3}, 10)
	assert.Equal(t, "▅▅▅", flat)
}

func TestEditLine(t *testing.T) {
	s, ok := editLine("ab", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.True(t, ok)
	assert.Equal(t, "abc", s)

	s, _ = editLine("héé", tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "hé", s)

	s, _ = editLine("", tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "", s)

	_, ok = editLine("x", tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, ok)
}

func TestFit(t *testing.T) {
	assert.Equal(t, "abc  ", fit("abc", 5))
	assert.Equal(t, 4, lipgloss.Width(fit("abcdefgh", 4)))
	assert.Empty(t, fit("abc", 0))
}
