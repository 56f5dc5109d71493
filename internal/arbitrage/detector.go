package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Detector runs detection passes: it fetches a snapshot from the exchange's
// market data source, normalises it, searches for the best triangle, and
// forwards the result to every configured sink.
type Detector struct {
	sources         *SourceRegistry
	sinks           []domain.ResultSink
	defaultExchange string
	now             func() time.Time
	logger          *slog.Logger
}

// DetectorConfig configures the detector.
type DetectorConfig struct {
	Sources *SourceRegistry
	// Sinks receive every detection. Leave empty to skip persistence.
	Sinks []domain.ResultSink
	// DefaultExchange is used when Detect is called with an empty identifier.
	DefaultExchange string
	// Now overrides the capture clock (tests).
	Now    func() time.Time
	Logger *slog.Logger
}

// NewDetector creates a Detector from cfg.
func NewDetector(cfg DetectorConfig) *Detector {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sources := cfg.Sources
	if sources == nil {
		sources = NewSourceRegistry()
	}
	return &Detector{
		sources:         sources,
		sinks:           cfg.Sinks,
		defaultExchange: normalizeExchange(cfg.DefaultExchange),
		now:             now,
		logger:          logger.With(slog.String("component", "arb_detector")),
	}
}

// DefaultExchange returns the canonical exchange used when none is given.
func (d *Detector) DefaultExchange() string {
	return d.defaultExchange
}

// Detect runs one detection pass on exchange. The identifier is matched and
// recorded in its canonical form (trimmed, lower case), so every sink keys
// the same exchange identically. A failure to obtain the snapshot aborts the
// pass before any search runs. Sink failures are logged and do not affect
// the returned detection.
func (d *Detector) Detect(ctx context.Context, exchange string) (domain.Detection, error) {
	exchange = normalizeExchange(exchange)
	if exchange == "" {
		exchange = d.defaultExchange
	}
	src, err := d.sources.Get(exchange)
	if err != nil {
		return domain.Detection{}, fmt.Errorf("arbitrage: %w", err)
	}

	start := time.Now()
	snap, err := src.FetchSnapshot(ctx)
	if err != nil {
		return domain.Detection{}, fmt.Errorf("arbitrage: fetch %s: %w", exchange, err)
	}
	fetchDur := time.Since(start)

	tickers := Normalize(snap.Tickers, snap.ExchangeTime)
	best, profit := FindBestOpportunity(tickers)

	det := domain.Detection{
		ID:           uuid.NewString(),
		Exchange:     exchange,
		Opportunity:  best,
		Profit:       profit,
		TickerCount:  len(tickers),
		ExchangeTime: snap.ExchangeTimeUTC(),
		DetectedAt:   d.now().UTC(),
		Snapshot:     &snap,
	}

	attrs := []any{
		slog.String("exchange", exchange),
		slog.String("detection_id", det.ID),
		slog.Int("raw_tickers", len(snap.Tickers)),
		slog.Int("tickers", len(tickers)),
		slog.Duration("fetch", fetchDur),
		slog.Float64("profit", profit),
	}
	if best != nil {
		attrs = append(attrs, slog.Any("cycle", best.Symbols()))
		d.logger.InfoContext(ctx, "best opportunity found", attrs...)
	} else {
		d.logger.InfoContext(ctx, "no opportunity found", attrs...)
	}

	d.publish(ctx, det)
	return det, nil
}

// DetectAll runs Detect for every exchange concurrently and returns the
// detections in input order. The first failure cancels the remaining runs.
func (d *Detector) DetectAll(ctx context.Context, exchanges []string) ([]domain.Detection, error) {
	out := make([]domain.Detection, len(exchanges))
	g, ctx := errgroup.WithContext(ctx)
	for i, ex := range exchanges {
		g.Go(func() error {
			det, err := d.Detect(ctx, ex)
			if err != nil {
				return err
			}
			out[i] = det
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Detector) publish(ctx context.Context, det domain.Detection) {
	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, det); err != nil {
			d.logger.WarnContext(ctx, "result sink failed",
				slog.String("sink", sink.Name()),
				slog.String("exchange", det.Exchange),
				slog.String("detection_id", det.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
