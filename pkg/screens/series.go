package screens

import (
	"context"
	"strings"

	"gitlab.com/tinyland/lab/research-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
)

// TaskSeries loads the chart.
const TaskSeries = "series"

// Series is the metric chart for one subject.
type Series struct {
	*base
	cache *cache.Store[research.Series]

	query   research.SeriesQuery
	current *research.Series
}

// NewSeries creates a Series controller showing price over one year until
// told otherwise.
func NewSeries(d Deps) *Series {
	b := newBase("series", d)
	s := &Series{
		base:  b,
		cache: cache.NewStore[research.Series](cache.WithMetrics(d.Metrics)),
		query: research.SeriesQuery{Metric: research.MetricPrice, Period: research.Period1Y},
	}
	b.onReset(func() {
		s.cache.Clear()
		s.current = nil
	})
	return s
}

// SeriesKey is the cache key for q. Every field of the query is part of it.
func SeriesKey(q research.SeriesQuery) string {
	return cache.Key("series", strings.ToUpper(q.Symbol), string(q.Metric), string(q.Period))
}

// Load fetches the series for q, from cache unless force is set.
func (s *Series) Load(q research.SeriesQuery, force bool) *task.Run {
	s.query = q
	token := s.root.SessionToken()
	return task.Load(s.core, TaskSeries, func(ctx context.Context) (cache.Fetched[research.Series], error) {
		return cache.Fetch(ctx, s.cache, SeriesKey(q), force, func(ctx context.Context) (research.Series, error) {
			return s.svc.Series(ctx, token, q)
		})
	}, func(f cache.Fetched[research.Series]) {
		f.WriteBack(s.cache)
		s.current = &f.Value
	})
}

// Show loads symbol with the current metric and period.
func (s *Series) Show(symbol string) *task.Run {
	q := s.query
	q.Symbol = symbol
	return s.Load(q, false)
}

// SetMetric reloads the current subject with metric m.
func (s *Series) SetMetric(m research.Metric) *task.Run {
	q := s.query
	q.Metric = m
	return s.Load(q, false)
}

// SetPeriod reloads the current subject over period p.
func (s *Series) SetPeriod(p research.Period) *task.Run {
	q := s.query
	q.Period = p
	return s.Load(q, false)
}

// Refresh reloads the current query, bypassing the cache.
func (s *Series) Refresh() *task.Run { return s.Load(s.query, true) }

// Query returns the selection last requested.
func (s *Series) Query() research.SeriesQuery { return s.query }

// Current returns the last applied series.
func (s *Series) Current() (research.Series, bool) {
	if s.current == nil {
		return research.Series{}, false
	}
	return *s.current, true
}
