package arbitrage

import (
	"github.com/alanyoungcy/triarb/internal/domain"
)

// FindBestOpportunity returns the currency triangle with the highest product
// of chained rates, and that product. Each unordered triple of currencies is
// evaluated once, in the order the currencies first appear in tickers. A leg
// with no direct quote is resolved through the reciprocal of the opposite
// quote; triples with an unresolvable leg are skipped. Ties keep the first
// triple found. It returns nil and 0 when no triple can be formed.
func FindBestOpportunity(tickers []domain.ShortTicker) (*domain.Opportunity, float64) {
	book := newPriceBook(tickers)

	var (
		best       *domain.Opportunity
		bestProfit float64
	)
	eachTriple(book.currencies, func(a, b, c string) bool {
		ab, ok := book.leg(a, b)
		if !ok {
			return true
		}
		bc, ok := book.leg(b, c)
		if !ok {
			return true
		}
		ca, ok := book.leg(c, a)
		if !ok {
			return true
		}

		profit := ab.LastPrice * bc.LastPrice * ca.LastPrice
		if profit > bestProfit {
			bestProfit = profit
			best = &domain.Opportunity{
				Legs:   [3]domain.ShortTicker{ab, bc, ca},
				Profit: profit,
			}
		}
		return true
	})

	return best, bestProfit
}

// priceBook indexes a ticker set by symbol string and records the distinct
// currencies in first-seen order.
type priceBook struct {
	tickers    map[string]domain.ShortTicker
	currencies []string
}

func newPriceBook(tickers []domain.ShortTicker) priceBook {
	pb := priceBook{tickers: make(map[string]domain.ShortTicker, len(tickers))}
	seen := make(map[string]struct{})
	addCurrency := func(c string) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		pb.currencies = append(pb.currencies, c)
	}

	for _, t := range tickers {
		if !t.Symbol.Valid() || !validPrice(t.LastPrice) {
			continue
		}
		pb.tickers[t.Symbol.String()] = t
		addCurrency(t.Symbol.Base)
		addCurrency(t.Symbol.Quote)
	}
	return pb
}

// leg resolves the conversion from x to y: the direct x/y quote, or the
// reciprocal of y/x. Inversion never chains through a third currency.
func (pb priceBook) leg(x, y string) (domain.ShortTicker, bool) {
	sym := domain.NewSymbol(x, y)
	if t, ok := pb.tickers[sym.String()]; ok {
		return t, true
	}
	if t, ok := pb.tickers[sym.Inverse().String()]; ok {
		return domain.ShortTicker{
			Symbol:    sym,
			LastPrice: 1 / t.LastPrice,
			Inverted:  true,
		}, true
	}
	return domain.ShortTicker{}, false
}
