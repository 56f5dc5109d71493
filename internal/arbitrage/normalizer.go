// Package arbitrage finds triangular arbitrage cycles on a single exchange.
// It normalises raw exchange tickers, searches every currency triple for
// the highest chained rate, and orchestrates detection runs against market
// data sources and result sinks.
package arbitrage

import (
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// DelistThreshold is how far (in milliseconds) a ticker's last trade may lag
// the exchange clock before the pair is treated as delisted.
const DelistThreshold = int64(24 * time.Hour / time.Millisecond)

// Normalize converts raw exchange tickers into ShortTickers. Records whose
// key is not a currency pair, whose price is missing or not positive, or
// whose last trade is older than DelistThreshold relative to exchangeTime
// are dropped. Keys are visited in sorted order so the result is
// deterministic for a given snapshot.
func Normalize(raw map[string]domain.RawTicker, exchangeTime int64) []domain.ShortTicker {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.ShortTicker, 0, len(keys))
	for _, key := range keys {
		rt := raw[key]
		sym, ok := domain.ParseSymbol(key)
		if !ok {
			continue
		}
		if rt.Close == nil || !validPrice(*rt.Close) {
			continue
		}
		if IsDelisted(exchangeTime, rt) {
			continue
		}
		out = append(out, domain.ShortTicker{Symbol: sym, LastPrice: *rt.Close})
	}
	return out
}

// IsDelisted reports whether the ticker's last trade is more than
// DelistThreshold older than exchangeTime.
func IsDelisted(exchangeTime int64, rt domain.RawTicker) bool {
	return exchangeTime-rt.Timestamp > DelistThreshold
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
