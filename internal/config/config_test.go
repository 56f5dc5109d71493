package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Redis.Enabled() || cfg.Postgres.Enabled() || cfg.S3.Enabled() {
		t.Error("no backing service should be enabled by default")
	}
	if !cfg.Redis.TLSEnabled {
		t.Error("redis TLS should default to on")
	}
	if cfg.Detection.Exchange != "binance" || cfg.Redis.Key != "triarb" {
		t.Errorf("unexpected defaults: %+v", cfg.Detection)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "monitor"

[detection]
exchange = "Binance"
exchanges = ["file", "binance"]
interval = "15s"

[snapshot]
path = "/tmp/snap.json"

[redis]
host = "redis.internal"
key = "arb"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRIARB_REDIS_PORT", "6380")
	t.Setenv("TRIARB_REDIS_TLS_ENABLED", "false")
	t.Setenv("TRIARB_TIMEOUT", "5s")
	t.Setenv("TRIARB_NOTIFY_MIN_PROFIT", "1.002")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Mode != "monitor" || cfg.Detection.Interval.Duration != 15*time.Second {
		t.Errorf("file values not applied: mode=%s interval=%s", cfg.Mode, cfg.Detection.Interval)
	}
	if cfg.Detection.Timeout.Duration != 5*time.Second {
		t.Errorf("timeout=%s want 5s", cfg.Detection.Timeout)
	}
	if cfg.Redis.Addr() != "redis.internal:6380" || cfg.Redis.TLSEnabled {
		t.Errorf("redis=%+v", cfg.Redis)
	}
	if cfg.Redis.PoolSize != 10 {
		t.Errorf("unset fields keep defaults, pool_size=%d", cfg.Redis.PoolSize)
	}
	if cfg.Notify.MinProfit != 1.002 {
		t.Errorf("min_profit=%v", cfg.Notify.MinProfit)
	}

	got := strings.Join(cfg.ExchangeIDs(), ",")
	if got != "binance,file" {
		t.Errorf("ExchangeIDs=%s want binance,file", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Mode != "once" {
		t.Errorf("mode=%s", cfg.Mode)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("mode = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Detection.Exchanges = []string{"file", "replay"}
	cfg.Redis.Host = "localhost"
	cfg.Redis.PoolSize = 0
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_level "loud"`,
		`snapshot: path is required for exchange "file"`,
		`s3: bucket is required for exchange "replay"`,
		"redis: pool_size",
		"notify: telegram_token",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Binance.SecretKey = "s3cr3t"
	cfg.Server.APIKey = ""
	cfg.Detection.Exchanges = []string{"file"}

	out := RedactedConfig(&cfg)
	if out.Redis.Password != "***" || out.Binance.SecretKey != "***" {
		t.Errorf("secrets not redacted: %+v %+v", out.Redis, out.Binance)
	}
	if out.Server.APIKey != "" {
		t.Error("empty secrets stay empty")
	}
	if cfg.Redis.Password != "hunter2" {
		t.Error("original must not be modified")
	}
	out.Detection.Exchanges[0] = "mutated"
	if cfg.Detection.Exchanges[0] != "file" {
		t.Error("slices must be copied")
	}
}
