package screens

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
)

// TaskSearch is the search screen's only task. Each keystroke supersedes
// the previous query.
const TaskSearch = "search"

// MinQueryLength is the shortest query sent to the backend.
const MinQueryLength = 2

const defaultSearchCacheSize = 128

// Search is the subject search screen.
type Search struct {
	*base
	results cache.Cache[[]research.SearchResult]

	query   string
	current []research.SearchResult
}

// NewSearch creates a Search controller.
func NewSearch(d Deps) *Search {
	b := newBase("search", d)
	size := d.SearchCacheSize
	if size <= 0 {
		size = defaultSearchCacheSize
	}
	var results cache.Cache[[]research.SearchResult]
	bounded, err := cache.NewBounded[[]research.SearchResult](size, cache.WithMetrics(d.Metrics))
	if err != nil {
		b.log.Warn("falling back to unbounded search cache", zap.Error(err))
		results = cache.NewStore[[]research.SearchResult](cache.WithMetrics(d.Metrics))
	} else {
		results = bounded
	}

	s := &Search{base: b, results: results}
	b.onReset(func() {
		s.results.Clear()
		s.query = ""
		s.current = nil
	})
	return s
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// SetQuery searches for q. Queries shorter than MinQueryLength clear the
// results and cancel any search in flight. It returns the run, or nil when
// nothing was sent.
func (s *Search) SetQuery(q string) *task.Run {
	s.query = q
	norm := normalizeQuery(q)
	if len([]rune(norm)) < MinQueryLength {
		s.core.Cancel(TaskSearch)
		s.current = nil
		s.changed()
		return nil
	}

	token := s.root.SessionToken()
	return task.Load(s.core, TaskSearch, func(ctx context.Context) (cache.Fetched[[]research.SearchResult], error) {
		return cache.Fetch(ctx, s.results, cache.Key("search", norm), false, func(ctx context.Context) ([]research.SearchResult, error) {
			return s.svc.Search(ctx, token, norm)
		})
	}, func(f cache.Fetched[[]research.SearchResult]) {
		f.WriteBack(s.results)
		s.current = f.Value
	})
}

// Query returns the text last passed to SetQuery.
func (s *Search) Query() string { return s.query }

// Results returns the results of the latest completed query.
func (s *Search) Results() []research.SearchResult { return s.current }

// Select makes symbol the research subject.
func (s *Search) Select(symbol string) { s.root.SelectSubject(symbol) }
