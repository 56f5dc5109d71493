// Package binance implements domain.MarketDataSource for the Binance spot
// exchange using the go-binance REST client.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// ExchangeID is the identifier this source registers under.
const ExchangeID = "binance"

// Config holds Binance REST parameters.
type Config struct {
	// BaseURL overrides the REST endpoint, e.g. "https://api.binance.us".
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
	// RequestsPerSecond paces outbound calls. Zero disables pacing.
	RequestsPerSecond float64
}

// Source fetches every spot ticker from Binance in three calls: exchange
// info (to split concatenated symbols into base and quote), 24h ticker
// statistics, and the server clock.
type Source struct {
	client  *gobinance.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSource creates a Binance source.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	client := gobinance.NewClient(cfg.APIKey, cfg.SecretKey)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Source{
		client:  client,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "binance_source")),
	}
}

// Name returns the exchange identifier.
func (s *Source) Name() string { return ExchangeID }

// FetchSnapshot returns all tickers keyed "BASE/QUOTE". Symbols missing from
// exchange info keep Binance's concatenated form and are later discarded by
// the normaliser.
func (s *Source) FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("binance: wait: %w", err)
	}
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("binance: exchange info: %w", err)
	}
	pairs := make(map[string]string, len(info.Symbols))
	for _, sym := range info.Symbols {
		if sym.BaseAsset == "" || sym.QuoteAsset == "" {
			continue
		}
		pairs[sym.Symbol] = domain.NewSymbol(sym.BaseAsset, sym.QuoteAsset).String()
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("binance: wait: %w", err)
	}
	stats, err := s.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("binance: ticker stats: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("binance: wait: %w", err)
	}
	serverTime, err := s.client.NewServerTimeService().Do(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("binance: server time: %w", err)
	}

	tickers := make(map[string]domain.RawTicker, len(stats))
	var unmapped int
	for _, st := range stats {
		if st == nil {
			continue
		}
		key, ok := pairs[st.Symbol]
		if !ok {
			key = st.Symbol
			unmapped++
		}
		tickers[key] = domain.RawTicker{
			Close:     parsePrice(st.LastPrice),
			Timestamp: st.CloseTime,
		}
	}

	s.logger.DebugContext(ctx, "binance snapshot fetched",
		slog.Int("symbols", len(pairs)),
		slog.Int("tickers", len(tickers)),
		slog.Int("unmapped", unmapped),
		slog.Int64("server_time", serverTime),
	)

	return domain.MarketSnapshot{
		Exchange:     ExchangeID,
		ExchangeTime: serverTime,
		Tickers:      tickers,
	}, nil
}

// parsePrice returns nil for empty or unparseable prices.
func parsePrice(v string) *float64 {
	if v == "" {
		return nil
	}
	p, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &p
}

// Compile-time interface check.
var _ domain.MarketDataSource = (*Source)(nil)
