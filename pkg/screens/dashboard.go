package screens

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gitlab.com/tinyland/lab/research-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
)

// Dashboard task names. The header and the watchlist load independently.
const (
	TaskHeader = "header"
	TaskList   = "list"
)

type header struct {
	summary cache.Fetched[research.MarketSummary]
	movers  cache.Fetched[research.Movers]
}

// Dashboard shows the market header and the user's watchlist.
type Dashboard struct {
	*base
	summaries *cache.Store[research.MarketSummary]
	movers    *cache.Store[research.Movers]
	retry     task.RetryPolicy

	header *header
}

// NewDashboard creates a Dashboard controller.
func NewDashboard(d Deps) *Dashboard {
	b := newBase("dashboard", d)
	retry := d.Retry
	if retry.Classifier == nil {
		retry.Classifier = d.Classifier
	}
	db := &Dashboard{
		base:      b,
		summaries: cache.NewStore[research.MarketSummary](cache.WithMetrics(d.Metrics)),
		movers:    cache.NewStore[research.Movers](cache.WithMetrics(d.Metrics)),
		retry:     retry,
	}
	b.onReset(func() {
		db.summaries.Clear()
		db.movers.Clear()
		db.header = nil
	})
	return db
}

// Load fetches the header and the watchlist concurrently. force skips the
// header cache. Header failures are retried under the configured policy.
// It returns both runs.
func (db *Dashboard) Load(force bool) (headerRun, listRun *task.Run) {
	token := db.root.SessionToken()

	headerRun = task.Load(db.core, TaskHeader, func(ctx context.Context) (header, error) {
		var h header
		err := task.Retrying(func(ctx context.Context) error {
			var err error
			h, err = db.fetchHeader(ctx, token, force)
			return err
		}, db.retry)(ctx)
		return h, err
	}, func(h header) {
		h.summary.WriteBack(db.summaries)
		h.movers.WriteBack(db.movers)
		db.header = &h
	})

	listRun = task.Load(db.core, TaskList, func(ctx context.Context) ([]research.WatchItem, error) {
		return db.svc.Watchlist(ctx, token)
	}, db.root.SetWatchlist)

	return headerRun, listRun
}

// Refresh reloads everything, bypassing the cache.
func (db *Dashboard) Refresh() (headerRun, listRun *task.Run) { return db.Load(true) }

func (db *Dashboard) fetchHeader(ctx context.Context, token string, force bool) (header, error) {
	var h header
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := cache.Fetch(ctx, db.summaries, cache.Key("summary"), force, func(ctx context.Context) (research.MarketSummary, error) {
			return db.svc.MarketSummary(ctx, token)
		})
		h.summary = s
		return err
	})
	g.Go(func() error {
		m, err := cache.Fetch(ctx, db.movers, cache.Key("movers"), force, func(ctx context.Context) (research.Movers, error) {
			return db.svc.Movers(ctx, token)
		})
		h.movers = m
		return err
	})
	return h, g.Wait()
}

// Summary returns the last loaded market summary.
func (db *Dashboard) Summary() (research.MarketSummary, bool) {
	if db.header == nil {
		return research.MarketSummary{}, false
	}
	return db.header.summary.Value, true
}

// Movers returns the last loaded movers.
func (db *Dashboard) Movers() (research.Movers, bool) {
	if db.header == nil {
		return research.Movers{}, false
	}
	return db.header.movers.Value, true
}

// Watchlist returns the watchlist held by the Root.
func (db *Dashboard) Watchlist() []research.WatchItem { return db.root.Watchlist() }
