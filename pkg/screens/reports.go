package screens

import (
	"context"
	"strings"

	"gitlab.com/tinyland/lab/research-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
)

// TaskReports loads the research notes for the subject.
const TaskReports = "reports"

// Reports lists research notes for the selected subject. Reports cost
// credits, so results are cached per subject.
type Reports struct {
	*base
	cache *cache.Store[[]research.Report]
}

// NewReports creates a Reports controller.
func NewReports(d Deps) *Reports {
	b := newBase("reports", d)
	r := &Reports{
		base:  b,
		cache: cache.NewStore[[]research.Report](cache.WithMetrics(d.Metrics)),
	}
	b.onReset(r.cache.Clear)
	return r
}

// Load selects symbol and fetches its reports into the Root.
func (r *Reports) Load(symbol string, force bool) *task.Run {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	r.root.SelectSubject(symbol)
	token := r.root.SessionToken()
	return task.Load(r.core, TaskReports, func(ctx context.Context) (cache.Fetched[[]research.Report], error) {
		return cache.Fetch(ctx, r.cache, cache.Key("reports", symbol), force, func(ctx context.Context) ([]research.Report, error) {
			return r.svc.Reports(ctx, token, symbol)
		})
	}, func(f cache.Fetched[[]research.Report]) {
		f.WriteBack(r.cache)
		// A later SelectSubject from another screen wins.
		if r.root.Research().Subject == symbol {
			r.root.SetReports(f.Value)
		}
	})
}

// Current returns the research sub-state held by the Root.
func (r *Reports) Current() []research.Report { return r.root.Research().Reports }
