package domain

import "time"

// RawTicker is a ticker record as delivered by an exchange: the last trade
// price (nil when the exchange has none) and the time of that trade in Unix
// milliseconds.
type RawTicker struct {
	Close     *float64 `json:"close"`
	Timestamp int64    `json:"timestamp"`
}

// MarketSnapshot is one point-in-time view of every ticker on an exchange,
// keyed by the exchange's pair string, together with the exchange clock
// (Unix milliseconds) at fetch time.
type MarketSnapshot struct {
	Exchange     string               `json:"exchange"`
	ExchangeTime int64                `json:"exchange_time"`
	Tickers      map[string]RawTicker `json:"tickers"`
}

// ExchangeTimeUTC converts ExchangeTime to a time.Time.
func (s MarketSnapshot) ExchangeTimeUTC() time.Time {
	return time.UnixMilli(s.ExchangeTime).UTC()
}

// ShortTicker is the normalised last price of a pair, in quote units per
// one unit of base. Inverted marks a leg synthesised from the reciprocal of
// the opposite-direction quote.
type ShortTicker struct {
	Symbol    CurrencyPairSymbol `json:"symbol"`
	LastPrice float64            `json:"last_price"`
	Inverted  bool               `json:"inverted,omitempty"`
}

// Float64 returns a pointer to v. Handy for building RawTicker literals.
func Float64(v float64) *float64 {
	return &v
}
