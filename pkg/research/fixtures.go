package research

import "time"

var universe = []SearchResult{
	{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Kind: "equity"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Exchange: "NASDAQ", Kind: "equity"},
	{Symbol: "NVDA", Name: "NVIDIA Corporation", Exchange: "NASDAQ", Kind: "equity"},
	{Symbol: "AMZN", Name: "Amazon.com, Inc.", Exchange: "NASDAQ", Kind: "equity"},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Exchange: "NYSE", Kind: "equity"},
	{Symbol: "XOM", Name: "Exxon Mobil Corporation", Exchange: "NYSE", Kind: "equity"},
	{Symbol: "KO", Name: "The Coca-Cola Company", Exchange: "NYSE", Kind: "equity"},
	{Symbol: "TSLA", Name: "Tesla, Inc.", Exchange: "NASDAQ", Kind: "equity"},
	{Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Exchange: "NYSE Arca", Kind: "etf"},
	{Symbol: "QQQ", Name: "Invesco QQQ Trust", Exchange: "NASDAQ", Kind: "etf"},
}

var prices = map[string]Quote{
	"AAPL": {Symbol: "AAPL", Name: "Apple Inc.", Price: 227.48, Change: 1.92, ChangePercent: 0.85},
	"MSFT": {Symbol: "MSFT", Name: "Microsoft Corporation", Price: 431.1, Change: -2.35, ChangePercent: -0.54},
	"NVDA": {Symbol: "NVDA", Name: "NVIDIA Corporation", Price: 121.4, Change: 4.87, ChangePercent: 4.18},
	"AMZN": {Symbol: "AMZN", Name: "Amazon.com, Inc.", Price: 186.51, Change: 0.74, ChangePercent: 0.4},
	"JPM":  {Symbol: "JPM", Name: "JPMorgan Chase & Co.", Price: 208.02, Change: -1.16, ChangePercent: -0.55},
	"XOM":  {Symbol: "XOM", Name: "Exxon Mobil Corporation", Price: 117.36, Change: -2.9, ChangePercent: -2.41},
	"KO":   {Symbol: "KO", Name: "The Coca-Cola Company", Price: 71.68, Change: 0.21, ChangePercent: 0.29},
	"TSLA": {Symbol: "TSLA", Name: "Tesla, Inc.", Price: 238.77, Change: -11.3, ChangePercent: -4.52},
	"SPY":  {Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Price: 565.18, Change: 1.02, ChangePercent: 0.18},
	"QQQ":  {Symbol: "QQQ", Name: "Invesco QQQ Trust", Price: 482.9, Change: 1.88, ChangePercent: 0.39},
}

var indices = []Quote{
	{Symbol: "SPX", Name: "S&P 500", Price: 5702.55, Change: 40.91, ChangePercent: 0.72},
	{Symbol: "NDX", Name: "Nasdaq 100", Price: 19852.2, Change: 152.5, ChangePercent: 0.77},
	{Symbol: "DJI", Name: "Dow Jones Industrial Average", Price: 42063.36, Change: -38.17, ChangePercent: -0.09},
}

func fixtureReports(now time.Time) []Report {
	day := 24 * time.Hour
	return []Report{
		{ID: "rpt-aapl-1", Symbol: "AAPL", Title: "Services margin keeps expanding", Summary: "Services now a third of gross profit.", Rating: "buy", PublishedAt: now.Add(-2 * day)},
		{ID: "rpt-aapl-2", Symbol: "AAPL", Title: "Handset cycle: modest upgrade year", Summary: "Unit growth flat, ASP up.", Rating: "hold", PublishedAt: now.Add(-9 * day)},
		{ID: "rpt-nvda-1", Symbol: "NVDA", Title: "Data center backlog into next year", Summary: "Supply remains the constraint.", Rating: "buy", PublishedAt: now.Add(-1 * day)},
		{ID: "rpt-xom-1", Symbol: "XOM", Title: "Refining spreads normalise", Summary: "Downstream earnings to revert.", Rating: "hold", PublishedAt: now.Add(-4 * day)},
		{ID: "rpt-tsla-1", Symbol: "TSLA", Title: "Price cuts pressure auto margin", Summary: "Energy storage the bright spot.", Rating: "sell", PublishedAt: now.Add(-3 * day)},
	}
}

// periodShape gives the number of points and their spacing for a period.
func periodShape(p Period) (int, time.Duration) {
	day := 24 * time.Hour
	switch p {
	case Period1M:
		return 30, day
	case Period3M:
		return 90, day
	case Period5Y:
		return 60, 30 * day
	default:
		return 52, 7 * day
	}
}
