package domain

import "context"

// ResultSink receives the outcome of every detection run.
type ResultSink interface {
	Name() string
	Publish(ctx context.Context, d Detection) error
}

// ResultReader reads back the latest persisted result per exchange.
type ResultReader interface {
	Latest(ctx context.Context, exchange string) (ResultRecord, error)
}
