package arbitrage

import (
	"math"
	"testing"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func tk(base, quote string, p float64) domain.ShortTicker {
	return domain.ShortTicker{Symbol: domain.NewSymbol(base, quote), LastPrice: p}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func assertCycle(t *testing.T, opp *domain.Opportunity, tickers []domain.ShortTicker) {
	t.Helper()
	for i, leg := range opp.Legs {
		next := opp.Legs[(i+1)%3]
		if leg.Symbol.Quote != next.Symbol.Base {
			t.Errorf("leg %d %s does not chain into %s", i, leg.Symbol, next.Symbol)
		}
	}
	product := opp.Legs[0].LastPrice * opp.Legs[1].LastPrice * opp.Legs[2].LastPrice
	if product != opp.Profit {
		t.Errorf("profit %v is not the product of legs %v", opp.Profit, product)
	}
	for _, leg := range opp.Legs {
		if !legBacked(leg, tickers) {
			t.Errorf("leg %s@%v is neither a quote nor a reciprocal of one", leg.Symbol, leg.LastPrice)
		}
	}
}

func legBacked(leg domain.ShortTicker, tickers []domain.ShortTicker) bool {
	for _, t := range tickers {
		if !leg.Inverted && t.Symbol == leg.Symbol && t.LastPrice == leg.LastPrice {
			return true
		}
		if leg.Inverted && t.Symbol == leg.Symbol.Inverse() && 1/t.LastPrice == leg.LastPrice {
			return true
		}
	}
	return false
}

func TestFindBestOpportunityDirectCycle(t *testing.T) {
	tickers := []domain.ShortTicker{tk("A", "B", 2.0), tk("B", "C", 3.0), tk("C", "A", 0.2)}

	opp, profit := FindBestOpportunity(tickers)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	want := []string{"A/B", "B/C", "C/A"}
	for i, s := range opp.Symbols() {
		if s != want[i] {
			t.Errorf("leg %d=%s want %s", i, s, want[i])
		}
	}
	ab, bc, ca := 2.0, 3.0, 0.2
	if profit != ab*bc*ca {
		t.Errorf("profit=%v want %v", profit, ab*bc*ca)
	}
	if !approx(profit, 1.2) {
		t.Errorf("profit=%v want ~1.2", profit)
	}
	assertCycle(t, opp, tickers)
}

func TestFindBestOpportunityInvertsMissingLeg(t *testing.T) {
	tickers := []domain.ShortTicker{tk("A", "B", 2.0), tk("C", "B", 4.0), tk("C", "A", 0.5)}

	opp, profit := FindBestOpportunity(tickers)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	bc := opp.Legs[1]
	if bc.Symbol != domain.NewSymbol("B", "C") || !bc.Inverted || bc.LastPrice != 0.25 {
		t.Errorf("B->C leg=%+v want inverted B/C at 0.25", bc)
	}
	if profit != 0.25 {
		t.Errorf("profit=%v want 0.25", profit)
	}
	assertCycle(t, opp, tickers)
}

func TestFindBestOpportunityInversionIsExactReciprocal(t *testing.T) {
	p := 0.0371
	tickers := []domain.ShortTicker{tk("X", "Y", p), tk("Y", "Z", 1), tk("Z", "X", 1)}
	book := newPriceBook(tickers)

	leg, ok := book.leg("Y", "X")
	if !ok {
		t.Fatal("Y->X should resolve via X/Y")
	}
	if leg.LastPrice != 1/p {
		t.Errorf("Y->X=%v want %v", leg.LastPrice, 1/p)
	}
	if _, ok := book.leg("X", "Q"); ok {
		t.Error("X->Q must not resolve")
	}
}

func TestFindBestOpportunityTwoCurrencies(t *testing.T) {
	opp, profit := FindBestOpportunity([]domain.ShortTicker{tk("A", "B", 2), tk("B", "A", 0.5)})
	if opp != nil || profit != 0 {
		t.Errorf("got %+v, %v want nil, 0", opp, profit)
	}
}

func TestFindBestOpportunityEmpty(t *testing.T) {
	if opp, profit := FindBestOpportunity(nil); opp != nil || profit != 0 {
		t.Errorf("got %+v, %v want nil, 0", opp, profit)
	}
}

func TestFindBestOpportunityUnresolvableTriple(t *testing.T) {
	// A, B, C, D are all present but no triple closes.
	tickers := []domain.ShortTicker{tk("A", "B", 2), tk("C", "D", 3)}
	if opp, profit := FindBestOpportunity(tickers); opp != nil || profit != 0 {
		t.Errorf("got %+v, %v want nil, 0", opp, profit)
	}
}

func TestFindBestOpportunityPicksMaximum(t *testing.T) {
	tickers := []domain.ShortTicker{
		tk("A", "B", 2), tk("B", "C", 3), tk("C", "A", 0.2), // 1.2
		tk("B", "D", 5), tk("D", "A", 0.2), // A,B,D: 2*5*0.2 = 2.0
	}
	opp, profit := FindBestOpportunity(tickers)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if !approx(profit, 2.0) {
		t.Errorf("profit=%v want 2.0", profit)
	}
	want := []string{"A/B", "B/D", "D/A"}
	for i, s := range opp.Symbols() {
		if s != want[i] {
			t.Errorf("leg %d=%s want %s", i, s, want[i])
		}
	}
	assertCycle(t, opp, tickers)
}

func TestFindBestOpportunityTieKeepsFirst(t *testing.T) {
	// Currencies in first-seen order: A, B, C, D. Triples (A,B,C) and
	// (A,B,D) both yield exactly 1.0; (A,B,C) is enumerated first.
	tickers := []domain.ShortTicker{
		tk("A", "B", 1), tk("B", "C", 1), tk("C", "A", 1),
		tk("B", "D", 1), tk("D", "A", 1),
	}
	opp, profit := FindBestOpportunity(tickers)
	if opp == nil || profit != 1 {
		t.Fatalf("got %+v, %v", opp, profit)
	}
	if got := opp.Legs[1].Symbol.String(); got != "B/C" {
		t.Errorf("tie resolved to %s, want the first triple (B/C)", got)
	}
}

func TestFindBestOpportunitySingleOrientation(t *testing.T) {
	// A->B->C->A is a loss (0.5) while the reverse cycle A->C->B->A would be
	// a gain (2.0). Only the enumerated orientation is evaluated.
	tickers := []domain.ShortTicker{tk("A", "B", 0.5), tk("B", "C", 1), tk("C", "A", 1)}
	opp, profit := FindBestOpportunity(tickers)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if profit != 0.5 {
		t.Errorf("profit=%v want 0.5 (forward orientation only)", profit)
	}
}

func TestFindBestOpportunityDuplicateLastWins(t *testing.T) {
	tickers := []domain.ShortTicker{
		tk("A", "B", 1), tk("B", "C", 1), tk("C", "A", 1),
		tk("A", "B", 4),
	}
	_, profit := FindBestOpportunity(tickers)
	if profit != 4 {
		t.Errorf("profit=%v want 4 (later A/B quote wins)", profit)
	}
}

func TestFindBestOpportunitySkipsInvalidTickers(t *testing.T) {
	tickers := []domain.ShortTicker{
		{LastPrice: 3},
		tk("A", "B", 2), tk("B", "C", 3), tk("C", "A", 0.2),
		tk("C", "D", 0),
	}
	opp, profit := FindBestOpportunity(tickers)
	if opp == nil || math.IsInf(profit, 0) {
		t.Fatalf("got %+v, %v", opp, profit)
	}
	assertCycle(t, opp, tickers)
}

func TestFindBestOpportunityIdempotent(t *testing.T) {
	tickers := []domain.ShortTicker{
		tk("BTC", "USDT", 30000), tk("ETH", "USDT", 2000), tk("ETH", "BTC", 0.0668),
		tk("BNB", "USDT", 300), tk("BNB", "BTC", 0.0101), tk("BNB", "ETH", 0.149),
	}
	opp1, p1 := FindBestOpportunity(tickers)
	opp2, p2 := FindBestOpportunity(tickers)
	if p1 != p2 {
		t.Fatalf("profits differ: %v vs %v", p1, p2)
	}
	if opp1 == nil || opp2 == nil || *opp1 != *opp2 {
		t.Fatalf("opportunities differ: %+v vs %+v", opp1, opp2)
	}
	assertCycle(t, opp1, tickers)
}

func TestEachTriple(t *testing.T) {
	var got []string
	eachTriple([]string{"a", "b", "c", "d"}, func(a, b, c string) bool {
		got = append(got, a+b+c)
		return true
	})
	want := []string{"abc", "abd", "acd", "bcd"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("triple %d=%s want %s", i, got[i], want[i])
		}
	}

	calls := 0
	eachTriple([]string{"a", "b", "c", "d"}, func(a, b, c string) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Errorf("early stop: calls=%d want 1", calls)
	}
}
