package domain

import "strings"

// CurrencyPairSymbol is an ordered (base, quote) currency pair. Derivative
// markets additionally carry a settlement currency.
type CurrencyPairSymbol struct {
	Base   string
	Quote  string
	Settle string
}

// NewSymbol builds a spot symbol from a base and quote currency.
func NewSymbol(base, quote string) CurrencyPairSymbol {
	return CurrencyPairSymbol{Base: base, Quote: quote}
}

// ParseSymbol decodes "BASE/QUOTE" or "BASE/QUOTE:SETTLE". It reports false
// for anything else instead of panicking.
func ParseSymbol(s string) (CurrencyPairSymbol, bool) {
	pair, settle, hasSettle := strings.Cut(s, ":")
	if hasSettle && (settle == "" || strings.Contains(settle, ":")) {
		return CurrencyPairSymbol{}, false
	}
	base, quote, ok := strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
		return CurrencyPairSymbol{}, false
	}
	return CurrencyPairSymbol{Base: base, Quote: quote, Settle: settle}, true
}

// Valid reports whether both legs of the pair are set.
func (s CurrencyPairSymbol) Valid() bool {
	return s.Base != "" && s.Quote != ""
}

// Inverse returns the pair with base and quote swapped. The settlement
// currency is kept.
func (s CurrencyPairSymbol) Inverse() CurrencyPairSymbol {
	return CurrencyPairSymbol{Base: s.Quote, Quote: s.Base, Settle: s.Settle}
}

// String renders the symbol as "BASE/QUOTE" (or "BASE/QUOTE:SETTLE").
func (s CurrencyPairSymbol) String() string {
	if s.Settle != "" {
		return s.Base + "/" + s.Quote + ":" + s.Settle
	}
	return s.Base + "/" + s.Quote
}

// MarshalText implements encoding.TextMarshaler so symbols serialise as their
// string form.
func (s CurrencyPairSymbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Malformed input decodes
// to the zero symbol, which is not Valid.
func (s *CurrencyPairSymbol) UnmarshalText(text []byte) error {
	parsed, _ := ParseSymbol(string(text))
	*s = parsed
	return nil
}
