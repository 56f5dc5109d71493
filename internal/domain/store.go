package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Exchange string
	Limit    int
	Offset   int
	Since    *time.Time
}

// OpportunityRow is a persisted detection.
type OpportunityRow struct {
	ID           string    `json:"id"`
	Exchange     string    `json:"exchange_id"`
	Symbols      []string  `json:"symbols"`
	Prices       []float64 `json:"prices"`
	Inverted     []bool    `json:"inverted"`
	Profit       float64   `json:"profit"`
	TickerCount  int       `json:"ticker_count"`
	ExchangeTime time.Time `json:"exchange_time"`
	DetectedAt   time.Time `json:"detected_at"`
}

// OpportunityStore persists detection history.
type OpportunityStore interface {
	Insert(ctx context.Context, d Detection) error
	ListRecent(ctx context.Context, opts ListOpts) ([]OpportunityRow, error)
	Best(ctx context.Context, exchange string, since time.Time) (OpportunityRow, error)
}
