package research

import "time"

// User is the signed-in account.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Plan    string `json:"plan"`
	Credits int    `json:"credits"`
}

// Session is the result of a successful sign-in.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Quote is the latest price for one subject.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// MarketSummary is the dashboard header.
type MarketSummary struct {
	Indices []Quote   `json:"indices"`
	AsOf    time.Time `json:"as_of"`
}

// Movers lists the day's largest gainers and losers.
type Movers struct {
	Gainers []Quote `json:"gainers"`
	Losers  []Quote `json:"losers"`
}

// SearchResult is one subject matching a query.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Kind     string `json:"kind"`
}

// Metric selects what a series measures.
type Metric string

const (
	MetricPrice   Metric = "price"
	MetricPE      Metric = "pe"
	MetricRevenue Metric = "revenue"
	MetricEPS     Metric = "eps"
)

// Period selects how far back a series reaches.
type Period string

const (
	Period1M Period = "1m"
	Period3M Period = "3m"
	Period1Y Period = "1y"
	Period5Y Period = "5y"
)

// SeriesQuery names one series. Every field changes the result.
type SeriesQuery struct {
	Symbol string
	Metric Metric
	Period Period
}

// Point is one observation in a series.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is a metric over time for one subject.
type Series struct {
	Symbol string  `json:"symbol"`
	Metric Metric  `json:"metric"`
	Period Period  `json:"period"`
	Points []Point `json:"points"`
}

// WatchItem is one watchlist entry.
type WatchItem struct {
	ID      string    `json:"id"`
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name"`
	Price   float64   `json:"price"`
	AddedAt time.Time `json:"added_at"`
}

// Report is a published research note.
type Report struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Rating      string    `json:"rating"`
	PublishedAt time.Time `json:"published_at"`
}
