package screens

import (
	"context"
	"fmt"

	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
	"gitlab.com/tinyland/lab/research-pulse/pkg/toast"
)

// Watchlist manages the user's watchlist. Adds and removes run under
// per-item task names so they never supersede each other.
type Watchlist struct {
	*base
}

// NewWatchlist creates a Watchlist controller.
func NewWatchlist(d Deps) *Watchlist {
	b := newBase("watchlist", d)
	b.onReset(func() {})
	return &Watchlist{base: b}
}

// Load fetches the watchlist into the Root.
func (w *Watchlist) Load() *task.Run {
	token := w.root.SessionToken()
	return task.Load(w.core, TaskList, func(ctx context.Context) ([]research.WatchItem, error) {
		return w.svc.Watchlist(ctx, token)
	}, w.root.SetWatchlist)
}

// Add puts symbol on the watchlist and confirms with a toast.
func (w *Watchlist) Add(symbol string) *task.Run {
	token := w.root.SessionToken()
	return task.Load(w.core, "add:"+symbol, func(ctx context.Context) (research.WatchItem, error) {
		return w.svc.AddToWatchlist(ctx, token, symbol)
	}, func(item research.WatchItem) {
		w.root.UpsertWatchItem(item)
		w.root.Toasts().Show(fmt.Sprintf("Added %s to your watchlist", item.Symbol), toast.Success)
	})
}

// Remove deletes the item with id. The item stays visible until the
// backend confirms.
func (w *Watchlist) Remove(id string) *task.Run {
	token := w.root.SessionToken()
	return task.Load(w.core, "remove:"+id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.svc.RemoveFromWatchlist(ctx, token, id)
	}, func(struct{}) {
		if w.root.RemoveWatchItem(id) {
			w.root.Toasts().Show("Removed from your watchlist", toast.Info)
		}
	}, task.WithoutLoading())
}

// Items returns the watchlist held by the Root.
func (w *Watchlist) Items() []research.WatchItem { return w.root.Watchlist() }
