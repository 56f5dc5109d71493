package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/domain"
)

const triangleDoc = `{
  "exchange_time": 1700000000000,
  "tickers": {
    "A/B": {"close": 2, "timestamp": 1700000000000},
    "B/C": {"close": 3, "timestamp": 1700000000000},
    "C/A": {"close": 0.2, "timestamp": 1700000000000}
  }
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(p, []byte(triangleDoc), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

type countingSource struct {
	name  string
	calls atomic.Int32
}

func (s *countingSource) Name() string { return s.name }

func (s *countingSource) FetchSnapshot(context.Context) (domain.MarketSnapshot, error) {
	s.calls.Add(1)
	return domain.MarketSnapshot{Exchange: s.name, Tickers: map[string]domain.RawTicker{}}, nil
}

type recordingSink struct {
	mu  sync.Mutex
	got []domain.Detection
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, d domain.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, d)
	return nil
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

type keyLock struct {
	mu   sync.Mutex
	keys []string
}

func (l *keyLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return func() {}, nil
}

func testDeps(sinks []domain.ResultSink, sources ...domain.MarketDataSource) *Dependencies {
	reg := arbitrage.NewSourceRegistry()
	for _, s := range sources {
		reg.Register(s)
	}
	return &Dependencies{
		Sources: reg,
		Sinks:   sinks,
		Detector: arbitrage.NewDetector(arbitrage.DetectorConfig{
			Sources: reg,
			Sinks:   sinks,
			Logger:  quietLogger(),
		}),
	}
}

func TestWireDefaultsRegistersSources(t *testing.T) {
	cfg := config.Defaults()
	cfg.Snapshot.Path = writeSnapshot(t)

	deps, cleanup, err := Wire(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if got := deps.Sources.List(); !slices.Equal(got, []string{"binance", "file"}) {
		t.Errorf("sources = %v", got)
	}
	if len(deps.Sinks) != 0 {
		t.Errorf("sinks = %v, want none without backends", deps.SinkNames())
	}
	if deps.Hub != nil || deps.Results != nil || deps.Store != nil || deps.LockManager != nil {
		t.Error("optional backends should be nil")
	}
}

func TestWireServerModeUsesHubAsSink(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "server"

	deps, cleanup, err := Wire(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if deps.Hub == nil {
		t.Fatal("hub not wired in server mode")
	}
	if got := deps.SinkNames(); !slices.Equal(got, []string{"websocket"}) {
		t.Errorf("sinks = %v", got)
	}
}

func TestRunOnceWithFileSource(t *testing.T) {
	cfg := config.Defaults()
	cfg.Detection.Exchange = "file"
	cfg.Snapshot.Path = writeSnapshot(t)

	a := New(&cfg, quietLogger())
	defer a.Close()
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunUnknownExchange(t *testing.T) {
	cfg := config.Defaults()
	cfg.Detection.Exchange = "nowhere"

	a := New(&cfg, quietLogger())
	defer a.Close()
	err := a.Run(context.Background())
	if !errors.Is(err, domain.ErrUnknownExchange) {
		t.Fatalf("err = %v, want ErrUnknownExchange", err)
	}
}

func TestOnceModePublishesEveryExchange(t *testing.T) {
	cfg := config.Defaults()
	cfg.Detection.Exchange = "alpha"
	cfg.Detection.Exchanges = []string{"beta", "ALPHA"}

	sink := &recordingSink{}
	deps := testDeps([]domain.ResultSink{sink}, &countingSource{name: "alpha"}, &countingSource{name: "beta"})

	a := New(&cfg, quietLogger())
	if err := a.OnceMode(context.Background(), deps); err != nil {
		t.Fatalf("OnceMode: %v", err)
	}
	if len(sink.got) != 2 {
		t.Fatalf("published %d detections, want 2", len(sink.got))
	}
}

func TestMonitorModeScansUntilCancelled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "monitor"
	cfg.Detection.Exchange = "alpha"
	cfg.Detection.Interval.Duration = 10 * time.Millisecond

	src := &countingSource{name: "alpha"}
	lock := &keyLock{}
	deps := testDeps(nil, src)
	deps.LockManager = lock

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	a := New(&cfg, quietLogger())
	err := a.MonitorMode(ctx, deps)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if n := src.calls.Load(); n < 2 {
		t.Errorf("fetches = %d, want at least 2", n)
	}
	lock.mu.Lock()
	defer lock.mu.Unlock()
	if len(lock.keys) == 0 || lock.keys[0] != "detect:alpha" {
		t.Errorf("lock keys = %v", lock.keys)
	}
}

func TestMonitorModeSkipsWhenLockHeld(t *testing.T) {
	cfg := config.Defaults()
	cfg.Detection.Exchange = "alpha"
	cfg.Detection.Interval.Duration = 10 * time.Millisecond

	src := &countingSource{name: "alpha"}
	deps := testDeps(nil, src)
	deps.LockManager = heldLock{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a := New(&cfg, quietLogger())
	_ = a.MonitorMode(ctx, deps)
	if n := src.calls.Load(); n != 0 {
		t.Errorf("fetches = %d, want 0 while the lock is held", n)
	}
}
