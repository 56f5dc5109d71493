// Package snapshot reads and writes market snapshots as JSON documents and
// serves them back as market data sources.
//
// The document shape follows ccxt's fetch_tickers output:
//
//	{"exchange":"binance","exchange_time":1700000000000,
//	 "tickers":{"BTC/USDT":{"close":30000.5,"timestamp":1699999999000}}}
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Encode writes snap as an indented JSON document.
func Encode(w io.Writer, snap domain.MarketSnapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return nil
}

// Decode reads a snapshot document. A missing ticker map decodes as empty.
func Decode(r io.Reader) (domain.MarketSnapshot, error) {
	var snap domain.MarketSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	if snap.Tickers == nil {
		snap.Tickers = map[string]domain.RawTicker{}
	}
	return snap, nil
}

// ArchivePath returns the blob path for an archived document of the given
// kind ("snapshots" or "results"). Paths sort chronologically within an
// exchange: <prefix>/<exchange>/2006/01/02/20060102T150405.000Z-<id>.json.
func ArchivePath(prefix, exchange string, at time.Time, id string) string {
	at = at.UTC()
	name := at.Format("20060102T150405.000Z") + "-" + id + ".json"
	return path.Join(strings.TrimSuffix(prefix, "/"), exchange, at.Format("2006/01/02"), name)
}

// ExchangePrefix is the listing prefix for all archives of one exchange.
func ExchangePrefix(prefix, exchange string) string {
	return path.Join(strings.TrimSuffix(prefix, "/"), exchange) + "/"
}
