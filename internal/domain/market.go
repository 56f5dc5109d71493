package domain

import "context"

// MarketDataSource supplies ticker snapshots for one exchange.
type MarketDataSource interface {
	// Name returns the exchange identifier the source serves.
	Name() string
	// FetchSnapshot returns every ticker the exchange can list in bulk plus
	// the exchange clock. Sources that cannot list tickers in bulk return an
	// empty Tickers map, not an error.
	FetchSnapshot(ctx context.Context) (MarketSnapshot, error)
}
