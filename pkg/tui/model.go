// Package tui is the terminal presentation of research-pulse. The Bubbletea
// update loop is the state-owning context: background completions reach the
// core as messages through a Bridge, and the view is recomputed from the
// Root and the screen controllers after every update.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/screens"
	"gitlab.com/tinyland/lab/research-pulse/pkg/state"
)

// Screen is the visible page.
type Screen int

const (
	ScreenStartup Screen = iota
	ScreenSignIn
	ScreenDashboard
	ScreenSearch
	ScreenDetail
)

func (s Screen) String() string {
	switch s {
	case ScreenStartup:
		return "startup"
	case ScreenSignIn:
		return "signIn"
	case ScreenDashboard:
		return "dashboard"
	case ScreenSearch:
		return "search"
	case ScreenDetail:
		return "detail"
	default:
		return "invalid"
	}
}

var (
	metricCycle = []research.Metric{research.MetricPrice, research.MetricPE, research.MetricRevenue, research.MetricEPS}
	periodCycle = []research.Period{research.Period1M, research.Period3M, research.Period1Y, research.Period5Y}
)

// startMsg asks Update to begin the session restore.
type startMsg struct{}

// restoredMsg reports that the startup restore has finished.
type restoredMsg struct{}

// controllers are shared by every copy of the Model.
type controllers struct {
	root      *state.Root
	dashboard *screens.Dashboard
	search    *screens.Search
	series    *screens.Series
	watchlist *screens.Watchlist
	reports   *screens.Reports
	signIn    *screens.SignIn
}

// Model is the root Bubbletea model.
type Model struct {
	ctx context.Context
	c   *controllers
	log *zap.Logger

	screen     Screen
	lastStatus state.AuthStatus
	width      int
	height     int
	spinner    spinner.Model

	cursor   int    // selected row on dashboard and search
	query    string // search input
	email    string
	password string
	field    int // 0 email, 1 password

	metric research.Metric
	period research.Period
}

// New builds the model and its controllers. deps.Dispatcher must deliver
// into the program that runs the model, normally through a Bridge.
func New(ctx context.Context, deps screens.Deps) Model {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	return Model{
		ctx: ctx,
		c: &controllers{
			root:      deps.Root,
			dashboard: screens.NewDashboard(deps),
			search:    screens.NewSearch(deps),
			series:    screens.NewSeries(deps),
			watchlist: screens.NewWatchlist(deps),
			reports:   screens.NewReports(deps),
			signIn:    screens.NewSignIn(deps),
		},
		log:     log.Named("tui"),
		screen:  ScreenStartup,
		spinner: sp,
		metric:  research.MetricPrice,
		period:  research.Period1Y,
	}
}

// Screen returns the visible page.
func (m Model) Screen() Screen { return m.screen }

// Init starts the spinner and the session restore.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return startMsg{} })
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case applyMsg:
		msg.fn()
		return m.syncAuth(), nil

	case startMsg:
		done := m.c.root.Restore(m.ctx)
		return m, func() tea.Msg {
			<-done
			return restoredMsg{}
		}

	case restoredMsg:
		return m.syncAuth(), nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// syncAuth moves between the sign-in page and the authenticated pages when
// the Root's auth status changes.
func (m Model) syncAuth() Model {
	status := m.c.root.Status()
	if status == m.lastStatus {
		return m
	}
	m.log.Debug("auth status changed", zap.Stringer("from", m.lastStatus), zap.Stringer("to", status))
	m.lastStatus = status

	switch status {
	case state.StatusAuthenticated:
		m.screen = ScreenDashboard
		m.cursor = 0
		m.password = ""
		m.c.dashboard.Load(false)
	case state.StatusUnauthenticated:
		m.screen = ScreenSignIn
		m.field = 0
		m.query = ""
	}
	return m
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	switch m.screen {
	case ScreenSignIn:
		return m.signInKey(key)
	case ScreenSearch:
		return m.searchKey(key)
	case ScreenDashboard:
		return m.dashboardKey(key)
	case ScreenDetail:
		return m.detailKey(key)
	}
	if key.String() == "q" {
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) signInKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.field = 1 - m.field
		return m, nil
	case tea.KeyEnter:
		if m.field == 0 {
			m.field = 1
			return m, nil
		}
		m.c.signIn.ClearError()
		m.c.signIn.Submit(m.email, m.password)
		return m, nil
	case tea.KeyEsc:
		m.c.signIn.ClearError()
		return m, nil
	}
	if m.field == 0 {
		m.email, _ = editLine(m.email, key)
	} else {
		m.password, _ = editLine(m.password, key)
	}
	return m, nil
}

func (m Model) dashboardKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.c.dashboard.Watchlist()
	switch key.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.screen = ScreenSearch
		m.cursor = 0
		return m, nil
	case "r":
		m.c.dashboard.Refresh()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(items) {
			return m.openDetail(items[m.cursor].Symbol), nil
		}
	case "d":
		if m.cursor < len(items) {
			m.c.watchlist.Remove(items[m.cursor].ID)
			if m.cursor > 0 && m.cursor == len(items)-1 {
				m.cursor--
			}
		}
	case "x":
		m.c.root.SignOut()
		return m.syncAuth(), nil
	case "esc":
		m.clearErrors()
	}
	return m, nil
}

func (m Model) searchKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	results := m.c.search.Results()
	switch key.Type {
	case tea.KeyEsc:
		m.screen = ScreenDashboard
		m.cursor = 0
		return m, nil
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case tea.KeyDown:
		if m.cursor < len(results)-1 {
			m.cursor++
		}
		return m, nil
	case tea.KeyEnter:
		if m.cursor < len(results) {
			return m.openDetail(results[m.cursor].Symbol), nil
		}
		return m, nil
	case tea.KeyTab:
		if m.cursor < len(results) {
			m.c.watchlist.Add(results[m.cursor].Symbol)
		}
		return m, nil
	}
	if q, ok := editLine(m.query, key); ok && q != m.query {
		m.query = q
		m.cursor = 0
		m.c.search.SetQuery(q)
	}
	return m, nil
}

func (m Model) detailKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.screen = ScreenDashboard
		m.cursor = 0
	case "m":
		m.metric = next(metricCycle, m.metric)
		m.c.series.SetMetric(m.metric)
	case "p":
		m.period = next(periodCycle, m.period)
		m.c.series.SetPeriod(m.period)
	case "r":
		m.c.series.Refresh()
		m.c.reports.Load(m.c.series.Query().Symbol, true)
	case "a":
		m.c.watchlist.Add(m.c.series.Query().Symbol)
	}
	return m, nil
}

// openDetail shows the series and reports for symbol.
func (m Model) openDetail(symbol string) Model {
	m.screen = ScreenDetail
	m.c.series.Load(research.SeriesQuery{Symbol: symbol, Metric: m.metric, Period: m.period}, false)
	m.c.reports.Load(symbol, false)
	return m
}

// errorSource is the part of a controller that holds an inline error.
type errorSource interface {
	ErrorMessage() string
	ClearError()
}

// screenErrors lists the controllers whose errors show on the current page.
func (m Model) screenErrors() []errorSource {
	switch m.screen {
	case ScreenSignIn:
		return []errorSource{m.c.signIn}
	case ScreenDashboard:
		return []errorSource{m.c.dashboard, m.c.watchlist}
	case ScreenSearch:
		return []errorSource{m.c.search, m.c.watchlist}
	case ScreenDetail:
		return []errorSource{m.c.series, m.c.reports, m.c.watchlist}
	}
	return nil
}

// screenError is the first inline error on the current page, or "".
func (m Model) screenError() string {
	for _, src := range m.screenErrors() {
		if msg := src.ErrorMessage(); msg != "" {
			return msg
		}
	}
	return ""
}

// clearErrors dismisses the page's inline errors first, then the global one.
func (m Model) clearErrors() {
	cleared := false
	for _, src := range m.screenErrors() {
		if src.ErrorMessage() != "" {
			src.ClearError()
			cleared = true
		}
	}
	if !cleared {
		m.c.root.ClearError()
	}
}

// loading reports whether anything visible is waiting on the network.
func (m Model) loading() bool {
	if m.c.root.GlobalLoading() || m.c.root.Status() == state.StatusLoading {
		return true
	}
	switch m.screen {
	case ScreenSignIn:
		return m.c.signIn.IsLoading()
	case ScreenDashboard:
		return m.c.dashboard.IsLoading() || m.c.watchlist.IsLoading()
	case ScreenSearch:
		return m.c.search.IsLoading()
	case ScreenDetail:
		return m.c.series.IsLoading() || m.c.reports.IsLoading()
	}
	return m.screen == ScreenStartup
}

func next[T comparable](cycle []T, cur T) T {
	for i, v := range cycle {
		if v == cur {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}
