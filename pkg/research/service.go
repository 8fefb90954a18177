// Package research is the data-access boundary of the client. Service
// methods return raw faults; callers classify them with apperr.
package research

import "context"

// Service is everything the client asks of the research backend. token is
// the session credential; methods that need no session ignore it.
type Service interface {
	Me(ctx context.Context, token string) (User, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	MarketSummary(ctx context.Context, token string) (MarketSummary, error)
	Movers(ctx context.Context, token string) (Movers, error)
	Search(ctx context.Context, token, query string) ([]SearchResult, error)
	Series(ctx context.Context, token string, q SeriesQuery) (Series, error)
	Watchlist(ctx context.Context, token string) ([]WatchItem, error)
	AddToWatchlist(ctx context.Context, token, symbol string) (WatchItem, error)
	RemoveFromWatchlist(ctx context.Context, token, id string) error
	Reports(ctx context.Context, token, symbol string) ([]Report, error)
}
