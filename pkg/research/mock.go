package research

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
)

// Method names a Service method for fault injection and call counting.
type Method string

const (
	MethodMe                  Method = "Me"
	MethodSignIn              Method = "SignIn"
	MethodMarketSummary       Method = "MarketSummary"
	MethodMovers              Method = "Movers"
	MethodSearch              Method = "Search"
	MethodSeries              Method = "Series"
	MethodWatchlist           Method = "Watchlist"
	MethodAddToWatchlist      Method = "AddToWatchlist"
	MethodRemoveFromWatchlist Method = "RemoveFromWatchlist"
	MethodReports             Method = "Reports"
)

// MockToken is the session token a default Mock accepts.
const MockToken = "mock-session"

// Mock implements Service from in-memory fixtures. It is used by --use-mocks
// runs and by tests, which inject latency, faults and hooks per method.
type Mock struct {
	mu        sync.RWMutex
	latency   time.Duration
	faults    map[Method]error
	hooks     map[Method]func(ctx context.Context) error
	token     string
	user      User
	watchlist []WatchItem
	now       func() time.Time

	calls sync.Map // Method -> *atomic.Int64
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithLatency delays every call by d, or until ctx is done.
func WithLatency(d time.Duration) MockOption {
	return func(m *Mock) { m.latency = d }
}

// WithFault makes method fail with err.
func WithFault(method Method, err error) MockOption {
	return func(m *Mock) { m.faults[method] = err }
}

// WithHook runs fn at the start of every call to method. A non-nil error
// from fn is returned by the call.
func WithHook(method Method, fn func(ctx context.Context) error) MockOption {
	return func(m *Mock) { m.hooks[method] = fn }
}

// WithUser sets the account returned by Me and SignIn.
func WithUser(u User) MockOption {
	return func(m *Mock) { m.user = u }
}

// WithToken sets the only session token the mock accepts.
func WithToken(token string) MockOption {
	return func(m *Mock) { m.token = token }
}

// WithWatchlist seeds the watchlist by symbol.
func WithWatchlist(symbols ...string) MockOption {
	return func(m *Mock) {
		for _, s := range symbols {
			m.watchlist = append(m.watchlist, m.newItem(prices[s]))
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MockOption {
	return func(m *Mock) { m.now = now }
}

// NewMock creates a Mock.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		faults: make(map[Method]error),
		hooks:  make(map[Method]func(context.Context) error),
		token:  MockToken,
		user: User{
			ID:      "usr_mock",
			Email:   "analyst@example.com",
			Name:    "Mock Analyst",
			Plan:    "pro",
			Credits: 120,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Service = (*Mock)(nil)

// SetFault changes the fault for method; nil clears it.
func (m *Mock) SetFault(method Method, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, method)
		return
	}
	m.faults[method] = err
}

// CallCount returns how many times method has been called.
func (m *Mock) CallCount(method Method) int64 {
	v, ok := m.calls.Load(method)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func (m *Mock) enter(ctx context.Context, method Method, token string, authed bool) error {
	v, _ := m.calls.LoadOrStore(method, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)

	m.mu.RLock()
	hook := m.hooks[method]
	latency := m.latency
	fault := m.faults[method]
	valid := m.token
	m.mu.RUnlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if fault != nil {
		return fault
	}
	if authed && token != valid {
		return &apperr.StatusError{Code: 401, Message: "invalid session"}
	}
	return nil
}

func (m *Mock) Me(ctx context.Context, token string) (User, error) {
	if err := m.enter(ctx, MethodMe, token, true); err != nil {
		return User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, nil
}

func (m *Mock) SignIn(ctx context.Context, email, password string) (Session, error) {
	if err := m.enter(ctx, MethodSignIn, "", false); err != nil {
		return Session{}, err
	}
	if !strings.Contains(email, "@") {
		return Session{}, &apperr.APIFault{Status: 422, Code: "VALIDATION_EMAIL", Message: "Enter a valid email address"}
	}
	if password == "" {
		return Session{}, &apperr.APIFault{Status: 422, Code: "VALIDATION_PASSWORD", Message: "Password is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = "mock-" + uuid.NewString()
	m.user.Email = email
	return Session{Token: m.token, User: m.user}, nil
}

func (m *Mock) MarketSummary(ctx context.Context, token string) (MarketSummary, error) {
	if err := m.enter(ctx, MethodMarketSummary, token, true); err != nil {
		return MarketSummary{}, err
	}
	return MarketSummary{
		Indices: append([]Quote(nil), indices...),
		AsOf:    m.now(),
	}, nil
}

func (m *Mock) Movers(ctx context.Context, token string) (Movers, error) {
	if err := m.enter(ctx, MethodMovers, token, true); err != nil {
		return Movers{}, err
	}
	quotes := make([]Quote, 0, len(prices))
	for _, q := range prices {
		quotes = append(quotes, q)
	}
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].ChangePercent != quotes[j].ChangePercent {
			return quotes[i].ChangePercent > quotes[j].ChangePercent
		}
		return quotes[i].Symbol < quotes[j].Symbol
	})

	var out Movers
	for _, q := range quotes {
		if q.ChangePercent > 0 && len(out.Gainers) < 3 {
			out.Gainers = append(out.Gainers, q)
		}
	}
	for i := len(quotes) - 1; i >= 0 && len(out.Losers) < 3; i-- {
		if quotes[i].ChangePercent < 0 {
			out.Losers = append(out.Losers, quotes[i])
		}
	}
	return out, nil
}

func (m *Mock) Search(ctx context.Context, token, query string) ([]SearchResult, error) {
	if err := m.enter(ctx, MethodSearch, token, true); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	var out []SearchResult
	for _, r := range universe {
		if strings.HasPrefix(strings.ToLower(r.Symbol), q) || strings.Contains(strings.ToLower(r.Name), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Mock) Series(ctx context.Context, token string, q SeriesQuery) (Series, error) {
	if err := m.enter(ctx, MethodSeries, token, true); err != nil {
		return Series{}, err
	}
	base, ok := prices[strings.ToUpper(q.Symbol)]
	if !ok {
		return Series{}, &apperr.StatusError{Code: 404, Resource: "Series"}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(q.Symbol + "|" + string(q.Metric)))
	seed := float64(h.Sum32()%1000) / 1000

	level := base.Price
	switch q.Metric {
	case MetricPE:
		level = 12 + 30*seed
	case MetricEPS:
		level = 1 + 9*seed
	case MetricRevenue:
		level = 10 + 400*seed
	}

	n, step := periodShape(q.Period)
	end := m.now().Truncate(24 * time.Hour)
	points := make([]Point, n)
	for i := range points {
		wave := math.Sin(float64(i)/5 + seed*math.Pi)
		drift := float64(i-n) / float64(n) * 0.1
		points[i] = Point{
			Time:  end.Add(-time.Duration(n-1-i) * step),
			Value: math.Round(level*(1+0.03*wave+drift)*100) / 100,
		}
	}
	return Series{Symbol: q.Symbol, Metric: q.Metric, Period: q.Period, Points: points}, nil
}

func (m *Mock) Watchlist(ctx context.Context, token string) ([]WatchItem, error) {
	if err := m.enter(ctx, MethodWatchlist, token, true); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]WatchItem(nil), m.watchlist...), nil
}

func (m *Mock) AddToWatchlist(ctx context.Context, token, symbol string) (WatchItem, error) {
	if err := m.enter(ctx, MethodAddToWatchlist, token, true); err != nil {
		return WatchItem{}, err
	}
	q, ok := prices[strings.ToUpper(symbol)]
	if !ok {
		return WatchItem{}, &apperr.StatusError{Code: 404, Resource: "Subject"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.watchlist {
		if it.Symbol == q.Symbol {
			return WatchItem{}, &apperr.APIFault{Status: 409, Code: "WATCHLIST_DUPLICATE", Message: q.Symbol + " is already on your watchlist"}
		}
	}
	item := m.newItem(q)
	m.watchlist = append(m.watchlist, item)
	return item, nil
}

func (m *Mock) RemoveFromWatchlist(ctx context.Context, token, id string) error {
	if err := m.enter(ctx, MethodRemoveFromWatchlist, token, true); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.watchlist {
		if it.ID == id {
			m.watchlist = append(m.watchlist[:i:i], m.watchlist[i+1:]...)
			return nil
		}
	}
	return &apperr.StatusError{Code: 404, Resource: "Watchlist item"}
}

func (m *Mock) Reports(ctx context.Context, token, symbol string) ([]Report, error) {
	if err := m.enter(ctx, MethodReports, token, true); err != nil {
		return nil, err
	}
	var out []Report
	for _, r := range fixtureReports(m.now()) {
		if symbol == "" || strings.EqualFold(r.Symbol, symbol) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Mock) newItem(q Quote) WatchItem {
	return WatchItem{
		ID:      uuid.NewString(),
		Symbol:  q.Symbol,
		Name:    q.Name,
		Price:   q.Price,
		AddedAt: m.now(),
	}
}
