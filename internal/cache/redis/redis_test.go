package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func TestKeys(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{ResultKey("triarb", "binance"), "triarb:binance"},
		{ResultKey("arb", "file"), "arb:file"},
		{LockKey("detect:binance"), "lock:detect:binance"},
		{rateLimitKey("api:10.0.0.1"), "ratelimit:api:10.0.0.1"},
		{ClientConfig{Host: "redis.internal", Port: 6380}.Addr(), "redis.internal:6380"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %s want %s", c.got, c.want)
		}
	}
}

func TestHasPattern(t *testing.T) {
	if hasPattern(OpportunityChannel) {
		t.Errorf("%s is not a pattern", OpportunityChannel)
	}
	if !hasPattern("ch:*") {
		t.Error("ch:* is a pattern")
	}
}

// memDocs mimics JSON.SET/JSON.GET: a missing key reads as redis.Nil.
type memDocs struct {
	docs   map[string]string
	getErr error
}

func (m *memDocs) set(_ context.Context, key string, doc []byte) error {
	m.docs[key] = string(doc)
	return nil
}

func (m *memDocs) get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	doc, ok := m.docs[key]
	if !ok {
		return "", redis.Nil
	}
	return doc, nil
}

func triangleDetection() domain.Detection {
	leg := func(base, quote string, price float64) domain.ShortTicker {
		return domain.ShortTicker{Symbol: domain.NewSymbol(base, quote), LastPrice: price}
	}
	return domain.Detection{
		ID:       "d1",
		Exchange: "binance",
		Opportunity: &domain.Opportunity{
			Legs:   [3]domain.ShortTicker{leg("A", "B", 2), leg("B", "C", 3), leg("C", "A", 0.2)},
			Profit: 1.2,
		},
		Profit:     1.2,
		DetectedAt: time.Unix(1700000000, 500000000).UTC(),
	}
}

func TestResultSinkPublishWritesRecord(t *testing.T) {
	docs := &memDocs{docs: map[string]string{}}
	sink := &ResultSink{docs: docs, prefix: "triarb"}

	if err := sink.Publish(context.Background(), triangleDetection()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	raw, ok := docs.docs["triarb:binance"]
	if !ok {
		t.Fatalf("no document at triarb:binance, have %v", docs.docs)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	if len(doc) != 4 {
		t.Errorf("document fields = %v, want exactly 4", doc)
	}
	cycle, _ := doc["best_opportunity"].([]any)
	if len(cycle) != 3 || cycle[0] != "A/B" || cycle[1] != "B/C" || cycle[2] != "C/A" {
		t.Errorf("best_opportunity = %v", doc["best_opportunity"])
	}
	if doc["best_profit"] != 1.2 {
		t.Errorf("best_profit = %v", doc["best_profit"])
	}
	if doc["exchange_id"] != "binance" {
		t.Errorf("exchange_id = %v", doc["exchange_id"])
	}
	if doc["timestamp"] != 1700000000.5 {
		t.Errorf("timestamp = %v", doc["timestamp"])
	}
}

func TestResultSinkPublishOverwrites(t *testing.T) {
	docs := &memDocs{docs: map[string]string{}}
	sink := &ResultSink{docs: docs, prefix: "triarb"}
	ctx := context.Background()

	if err := sink.Publish(ctx, triangleDetection()); err != nil {
		t.Fatal(err)
	}
	empty := domain.Detection{ID: "d2", Exchange: "binance", DetectedAt: time.Unix(1700000060, 0)}
	if err := sink.Publish(ctx, empty); err != nil {
		t.Fatal(err)
	}

	rec, err := sink.Latest(ctx, "binance")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(rec.BestOpportunity) != 0 || rec.BestProfit != 0 || rec.Timestamp != 1700000060 {
		t.Errorf("latest record = %+v, want the empty second run", rec)
	}
}

func TestResultSinkLatest(t *testing.T) {
	ctx := context.Background()
	docs := &memDocs{docs: map[string]string{}}
	sink := &ResultSink{docs: docs, prefix: "triarb"}

	if _, err := sink.Latest(ctx, "binance"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing key: err = %v, want ErrNotFound", err)
	}

	docs.docs["triarb:file"] = ""
	if _, err := sink.Latest(ctx, "file"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("empty document: err = %v, want ErrNotFound", err)
	}

	if err := sink.Publish(ctx, triangleDetection()); err != nil {
		t.Fatal(err)
	}
	rec, err := sink.Latest(ctx, "binance")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if rec.ExchangeID != "binance" || rec.BestProfit != 1.2 || len(rec.BestOpportunity) != 3 {
		t.Errorf("record = %+v", rec)
	}

	docs.getErr = errors.New("connection refused")
	if _, err := sink.Latest(ctx, "binance"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("backend failure: err = %v, want a non-NotFound error", err)
	}
}
