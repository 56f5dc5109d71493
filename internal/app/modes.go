package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/server"
	"github.com/alanyoungcy/triarb/internal/server/handler"
)

// shutdownTimeout bounds the HTTP server drain.
const shutdownTimeout = 5 * time.Second

// OnceMode runs one detection per configured exchange, logs the outcome and
// returns.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Detection.Timeout.Duration)
	defer cancel()

	dets, err := deps.Detector.DetectAll(ctx, a.cfg.ExchangeIDs())
	if err != nil {
		return fmt.Errorf("once mode: %w", err)
	}
	for _, d := range dets {
		a.logDetection(ctx, d)
	}
	return nil
}

// MonitorMode scans every configured exchange once per interval until the
// context is cancelled.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Duration("interval", a.cfg.Detection.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps)
	return g.Wait()
}

// ServerMode runs the monitor loop together with the HTTP and WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

func (a *App) startMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, exchange := range a.cfg.ExchangeIDs() {
		g.Go(func() error {
			return a.monitorExchange(ctx, deps, exchange)
		})
	}
}

// monitorExchange scans immediately, then on every tick.
func (a *App) monitorExchange(ctx context.Context, deps *Dependencies, exchange string) error {
	ticker := time.NewTicker(a.cfg.Detection.Interval.Duration)
	defer ticker.Stop()

	for {
		a.scan(ctx, deps, exchange)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// scan runs one bounded detection. When a lock manager is wired, replicas
// holding the exchange lock are skipped. Failures are logged; the loop keeps
// running.
func (a *App) scan(ctx context.Context, deps *Dependencies, exchange string) {
	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, "detect:"+exchange, a.lockTTL())
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.DebugContext(ctx, "detection skipped, lock held elsewhere",
				slog.String("exchange", exchange),
			)
			return
		}
		if err != nil {
			a.logger.WarnContext(ctx, "detection lock failed",
				slog.String("exchange", exchange),
				slog.String("error", err.Error()),
			)
			return
		}
		defer unlock()
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Detection.Timeout.Duration)
	defer cancel()

	d, err := deps.Detector.Detect(runCtx, exchange)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.WarnContext(ctx, "detection failed",
				slog.String("exchange", exchange),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	a.logDetection(ctx, d)
}

func (a *App) lockTTL() time.Duration {
	if ttl := a.cfg.Redis.LockTTL.Duration; ttl > 0 {
		return ttl
	}
	return a.cfg.Detection.Interval.Duration
}

func (a *App) logDetection(ctx context.Context, d domain.Detection) {
	attrs := []any{
		slog.String("exchange", d.Exchange),
		slog.String("detection_id", d.ID),
		slog.Int("tickers", d.TickerCount),
		slog.Float64("profit", d.Profit),
	}
	if d.Found() {
		attrs = append(attrs, slog.Any("cycle", d.Opportunity.Symbols()))
	}
	a.logger.InfoContext(ctx, "detection complete", attrs...)
}

// startHTTPServer registers the API, the WebSocket hub loop and the
// shutdown watcher on g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Status: &handler.StatusHandler{
			Mode:      a.cfg.Mode,
			Exchanges: a.cfg.ExchangeIDs(),
			Interval:  a.cfg.Detection.Interval.Duration,
			Sinks:     deps.SinkNames(),
			StartedAt: a.startedAt,
		},
		Opportunities: handler.NewOpportunityHandler(
			deps.Detector, deps.Results, deps.Store, a.cfg.Detection.Timeout.Duration, a.logger,
		),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		DetectLimit: a.cfg.Server.DetectRateLimit,
	}, handlers, deps.Hub, deps.RateLimiter, a.logger)

	if deps.Hub != nil {
		g.Go(func() error {
			return deps.Hub.Run(ctx)
		})
	}

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
