package domain

import "time"

// Opportunity is a closed three-leg cycle A→B→C→A and the product of its
// chained rates.
type Opportunity struct {
	Legs   [3]ShortTicker `json:"legs"`
	Profit float64        `json:"profit"`
}

// Symbols returns the leg symbols in cycle order.
func (o Opportunity) Symbols() []string {
	out := make([]string, len(o.Legs))
	for i, leg := range o.Legs {
		out[i] = leg.Symbol.String()
	}
	return out
}

// Prices returns the leg prices in cycle order.
func (o Opportunity) Prices() []float64 {
	out := make([]float64, len(o.Legs))
	for i, leg := range o.Legs {
		out[i] = leg.LastPrice
	}
	return out
}

// Detection is the outcome of one detection run on one exchange.
// Opportunity is nil when no triangle could be formed; Profit is then 0.
type Detection struct {
	ID           string          `json:"id"`
	Exchange     string          `json:"exchange_id"`
	Opportunity  *Opportunity    `json:"opportunity,omitempty"`
	Profit       float64         `json:"profit"`
	TickerCount  int             `json:"ticker_count"`
	ExchangeTime time.Time       `json:"exchange_time"`
	DetectedAt   time.Time       `json:"detected_at"`
	Snapshot     *MarketSnapshot `json:"-"`
}

// Found reports whether the run produced an opportunity.
func (d Detection) Found() bool {
	return d.Opportunity != nil
}

// ResultRecord is the persisted form of a detection consumed by external
// readers of the result sink.
type ResultRecord struct {
	BestOpportunity []string `json:"best_opportunity"`
	BestProfit      float64  `json:"best_profit"`
	ExchangeID      string   `json:"exchange_id"`
	Timestamp       float64  `json:"timestamp"`
}

// Record converts the detection to its sink record. The timestamp is the
// capture time in fractional Unix seconds.
func (d Detection) Record() ResultRecord {
	rec := ResultRecord{
		BestOpportunity: []string{},
		BestProfit:      d.Profit,
		ExchangeID:      d.Exchange,
		Timestamp:       float64(d.DetectedAt.Unix()) + float64(d.DetectedAt.Nanosecond())/1e9,
	}
	if d.Opportunity != nil {
		rec.BestOpportunity = d.Opportunity.Symbols()
	}
	return rec
}
