package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// ReplaySourceName is the exchange identifier of the replay source.
const ReplaySourceName = "replay"

// ReplaySource serves the most recent snapshot archived for one exchange.
type ReplaySource struct {
	reader   domain.BlobReader
	prefix   string
	exchange string
	logger   *slog.Logger
}

// NewReplaySource creates a source over archives written under prefix for
// the given exchange.
func NewReplaySource(reader domain.BlobReader, prefix, exchange string, logger *slog.Logger) *ReplaySource {
	return &ReplaySource{
		reader:   reader,
		prefix:   prefix,
		exchange: exchange,
		logger:   logger.With(slog.String("component", "replay_source")),
	}
}

// Name returns "replay".
func (s *ReplaySource) Name() string { return ReplaySourceName }

// FetchSnapshot loads the archive with the greatest path, which is the
// newest because archive paths sort chronologically.
func (s *ReplaySource) FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	blobs, err := s.reader.List(ctx, ExchangePrefix(s.prefix, s.exchange))
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot: list archives: %w", err)
	}
	if len(blobs) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot: no archive for %s: %w", s.exchange, domain.ErrNotFound)
	}

	latest := blobs[0].Path
	for _, b := range blobs[1:] {
		if b.Path > latest {
			latest = b.Path
		}
	}

	rc, err := s.reader.Get(ctx, latest)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot: get %s: %w", latest, err)
	}
	defer rc.Close()

	snap, err := Decode(rc)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	s.logger.InfoContext(ctx, "replaying archived snapshot",
		slog.String("path", latest),
		slog.Int("tickers", len(snap.Tickers)),
	)
	return snap, nil
}

var _ domain.MarketDataSource = (*ReplaySource)(nil)
