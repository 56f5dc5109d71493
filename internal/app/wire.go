package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	s3blob "github.com/alanyoungcy/triarb/internal/blob/s3"
	"github.com/alanyoungcy/triarb/internal/cache/redis"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/platform/binance"
	"github.com/alanyoungcy/triarb/internal/platform/snapshot"
	"github.com/alanyoungcy/triarb/internal/server/handler"
	"github.com/alanyoungcy/triarb/internal/server/ws"
	"github.com/alanyoungcy/triarb/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional backends are nil when not configured.
type Dependencies struct {
	Detector *arbitrage.Detector
	Sources  *arbitrage.SourceRegistry
	Sinks    []domain.ResultSink

	// Read side for the HTTP API.
	Results domain.ResultReader
	Store   domain.OpportunityStore

	// Coordination
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Hub is set in server mode only.
	Hub *ws.Hub

	// Checks feed GET /api/health.
	Checks map[string]handler.CheckFunc
}

// SinkNames lists the configured sinks in publish order.
func (d *Dependencies) SinkNames() []string {
	names := make([]string, 0, len(d.Sinks))
	for _, s := range d.Sinks {
		names = append(names, s.Name())
	}
	return names
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Sources: arbitrage.NewSourceRegistry(),
		Checks:  make(map[string]handler.CheckFunc),
	}

	// --- Market data sources ---
	deps.Sources.Register(binance.NewSource(binance.Config{
		BaseURL:           cfg.Binance.BaseURL,
		APIKey:            cfg.Binance.APIKey,
		SecretKey:         cfg.Binance.SecretKey,
		Timeout:           cfg.Binance.Timeout.Duration,
		RequestsPerSecond: cfg.Binance.RequestsPerSecond,
	}, logger))
	if cfg.Snapshot.Path != "" {
		deps.Sources.Register(snapshot.NewFileSource(cfg.Snapshot.Path))
	}

	// --- Redis: result sink, broadcast, locks, rate limiting ---
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Host:       cfg.Redis.Host,
			Port:       cfg.Redis.Port,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		results := redis.NewResultSink(redisClient, cfg.Redis.Key)
		bus := redis.NewSignalBus(redisClient)
		deps.Results = results
		deps.SignalBus = bus
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Sinks = append(deps.Sinks, results, redis.NewBroadcastSink(bus, redis.OpportunityChannel))
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- PostgreSQL: opportunity history ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		store := postgres.NewOpportunityStore(pgClient.Pool())
		deps.Store = store
		deps.Sinks = append(deps.Sinks, store)
		deps.Checks["postgres"] = func(ctx context.Context) error {
			return pgClient.Pool().Ping(ctx)
		}
	}

	// --- S3: snapshot archive and replay source ---
	if cfg.S3.Enabled() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Sources.Register(snapshot.NewReplaySource(
			s3blob.NewReader(s3Client),
			cfg.Snapshot.BlobPrefix,
			cfg.Snapshot.ReplayExchange,
			logger,
		))
		if cfg.Snapshot.Archive {
			deps.Sinks = append(deps.Sinks, s3blob.NewArchiver(s3blob.NewWriter(s3Client), cfg.Snapshot.BlobPrefix, logger))
		}
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if notifier := notify.NewNotifier(senders, cfg.Notify.MinProfit, logger); notifier.Enabled() {
		deps.Sinks = append(deps.Sinks, notifier)
	}

	// --- WebSocket hub (server mode) ---
	if cfg.Mode == "server" {
		hubCfg := ws.Config{Mode: cfg.Mode, Exchanges: cfg.ExchangeIDs()}
		if deps.SignalBus != nil {
			deps.Hub = ws.NewHub(deps.SignalBus, redis.OpportunityChannel, logger, hubCfg)
		} else {
			deps.Hub = ws.NewHub(nil, "", logger, hubCfg)
			deps.Sinks = append(deps.Sinks, deps.Hub)
		}
	}

	deps.Detector = arbitrage.NewDetector(arbitrage.DetectorConfig{
		Sources:         deps.Sources,
		Sinks:           deps.Sinks,
		DefaultExchange: cfg.Detection.Exchange,
		Logger:          logger,
	})

	return deps, cleanup, nil
}
