package arbitrage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

type stubSource struct {
	name string
	snap domain.MarketSnapshot
	err  error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	return s.snap, s.err
}

type recordingSink struct {
	mu   sync.Mutex
	got  []domain.Detection
	fail error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(ctx context.Context, d domain.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, d)
	return s.fail
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func triangleSnapshot(exchange string) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Exchange:     exchange,
		ExchangeTime: now,
		Tickers: map[string]domain.RawTicker{
			"A/B":   fresh(2.0),
			"B/C":   fresh(3.0),
			"C/A":   fresh(0.2),
			"STALE": fresh(9),
		},
	}
}

func newTestDetector(sinks []domain.ResultSink, sources ...domain.MarketDataSource) *Detector {
	reg := NewSourceRegistry()
	for _, s := range sources {
		reg.Register(s)
	}
	return NewDetector(DetectorConfig{
		Sources:         reg,
		Sinks:           sinks,
		DefaultExchange: "binance",
		Now:             func() time.Time { return time.Unix(1700000000, 0) },
		Logger:          quietLogger(),
	})
}

func TestDetectorDetect(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDetector([]domain.ResultSink{sink}, stubSource{name: "binance", snap: triangleSnapshot("binance")})

	det, err := d.Detect(context.Background(), "")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Exchange != "binance" {
		t.Errorf("Exchange=%q want binance", det.Exchange)
	}
	if !det.Found() || !approx(det.Profit, 1.2) {
		t.Fatalf("unexpected detection %+v", det)
	}
	if det.TickerCount != 3 {
		t.Errorf("TickerCount=%d want 3", det.TickerCount)
	}
	if det.ID == "" {
		t.Error("detection ID not set")
	}
	if !det.DetectedAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("DetectedAt=%v", det.DetectedAt)
	}
	if len(sink.got) != 1 || sink.got[0].ID != det.ID {
		t.Fatalf("sink received %d detections", len(sink.got))
	}
}

func TestDetectorEmptySnapshotIsNotAnError(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDetector([]domain.ResultSink{sink}, stubSource{name: "binance", snap: domain.MarketSnapshot{ExchangeTime: now}})

	det, err := d.Detect(context.Background(), "binance")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Found() || det.Profit != 0 {
		t.Errorf("expected no opportunity, got %+v", det)
	}
	if len(sink.got) != 1 {
		t.Errorf("sink should still receive the empty result")
	}
}

func TestDetectorFetchFailureSkipsSearchAndSinks(t *testing.T) {
	sink := &recordingSink{}
	boom := errors.New("rate limited by exchange")
	d := newTestDetector([]domain.ResultSink{sink}, stubSource{name: "binance", err: boom})

	_, err := d.Detect(context.Background(), "binance")
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want wrapped %v", err, boom)
	}
	if len(sink.got) != 0 {
		t.Errorf("sink called %d times after fetch failure", len(sink.got))
	}
}

func TestDetectorUnknownExchange(t *testing.T) {
	d := newTestDetector(nil)
	_, err := d.Detect(context.Background(), "nowhere")
	if !errors.Is(err, domain.ErrUnknownExchange) {
		t.Fatalf("err=%v want ErrUnknownExchange", err)
	}
}

func TestDetectorCanonicalExchange(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(DetectorConfig{
		Sources:         registryWith(stubSource{name: "binance", snap: triangleSnapshot("binance")}),
		Sinks:           []domain.ResultSink{sink},
		DefaultExchange: " Binance",
		Logger:          quietLogger(),
	})
	if got := d.DefaultExchange(); got != "binance" {
		t.Errorf("DefaultExchange=%q want binance", got)
	}

	for _, in := range []string{"", "binance", "BINANCE ", "Binance"} {
		det, err := d.Detect(context.Background(), in)
		if err != nil {
			t.Fatalf("Detect(%q): %v", in, err)
		}
		if det.Exchange != "binance" {
			t.Errorf("Detect(%q).Exchange=%q want binance", in, det.Exchange)
		}
	}
	for _, got := range sink.got {
		if rec := got.Record(); rec.ExchangeID != "binance" {
			t.Errorf("record exchange=%q want binance", rec.ExchangeID)
		}
	}
}

func registryWith(sources ...domain.MarketDataSource) *SourceRegistry {
	reg := NewSourceRegistry()
	for _, s := range sources {
		reg.Register(s)
	}
	return reg
}

func TestDetectorSinkFailureIsSwallowed(t *testing.T) {
	bad := &recordingSink{fail: errors.New("redis down")}
	good := &recordingSink{}
	d := newTestDetector([]domain.ResultSink{bad, good}, stubSource{name: "binance", snap: triangleSnapshot("binance")})

	det, err := d.Detect(context.Background(), "binance")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !det.Found() {
		t.Error("sink failure must not alter the detection")
	}
	if len(good.got) != 1 {
		t.Error("later sinks must still be called")
	}
}

func TestDetectorDetectAll(t *testing.T) {
	d := newTestDetector(nil,
		stubSource{name: "binance", snap: triangleSnapshot("binance")},
		stubSource{name: "file", snap: domain.MarketSnapshot{ExchangeTime: now}},
	)

	dets, err := d.DetectAll(context.Background(), []string{"file", "binance"})
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(dets) != 2 || dets[0].Exchange != "file" || dets[1].Exchange != "binance" {
		t.Fatalf("unexpected detections %+v", dets)
	}
	if dets[0].Found() || !dets[1].Found() {
		t.Errorf("found flags wrong: %v %v", dets[0].Found(), dets[1].Found())
	}

	if _, err := d.DetectAll(context.Background(), []string{"binance", "missing"}); !errors.Is(err, domain.ErrUnknownExchange) {
		t.Errorf("err=%v want ErrUnknownExchange", err)
	}
}

func TestSourceRegistry(t *testing.T) {
	reg := NewSourceRegistry()
	reg.Register(stubSource{name: "Binance"})
	reg.Register(stubSource{name: "file"})

	if _, err := reg.Get("BINANCE "); err != nil {
		t.Errorf("case-insensitive lookup failed: %v", err)
	}
	names := reg.List()
	if len(names) != 2 || names[0] != "binance" || names[1] != "file" {
		t.Errorf("List()=%v", names)
	}
}
