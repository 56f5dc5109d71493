// Package config defines the top-level configuration for the triangular
// arbitrage detector and provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRIARB_* environment variables.
type Config struct {
	Detection DetectionConfig `toml:"detection"`
	Binance   BinanceConfig   `toml:"binance"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DetectionConfig selects which exchanges are scanned and how often.
type DetectionConfig struct {
	// Exchange is the default exchange identifier.
	Exchange string `toml:"exchange"`
	// Exchanges lists additional exchanges scanned in monitor and server mode.
	Exchanges []string `toml:"exchanges"`
	Interval  duration `toml:"interval"`
	Timeout   duration `toml:"timeout"`
}

// BinanceConfig holds Binance REST parameters.
type BinanceConfig struct {
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	SecretKey         string   `toml:"secret_key"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// SnapshotConfig holds the file and archive snapshot parameters.
type SnapshotConfig struct {
	// Path of a JSON snapshot file. Non-empty enables the "file" exchange.
	Path string `toml:"path"`
	// BlobPrefix is where snapshots are archived in S3.
	BlobPrefix string `toml:"blob_prefix"`
	// ReplayExchange is the exchange whose archives the "replay" source serves.
	ReplayExchange string `toml:"replay_exchange"`
	// Archive uploads every fetched snapshot when S3 is configured.
	Archive bool `toml:"archive"`
}

// RedisConfig holds Redis connection parameters. An empty Host disables
// every Redis-backed component.
type RedisConfig struct {
	Host       string   `toml:"host"`
	Port       int      `toml:"port"`
	Password   string   `toml:"password"`
	Key        string   `toml:"key"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    duration `toml:"lock_ttl"`
}

// Enabled reports whether a Redis host is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// PostgresConfig holds PostgreSQL connection parameters. Either DSN or Host
// enables the opportunity history.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a PostgreSQL connection is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || strings.TrimSpace(p.Host) != ""
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables the archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Enabled reports whether a bucket is configured.
func (s S3Config) Enabled() bool { return strings.TrimSpace(s.Bucket) != "" }

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// DetectRateLimit caps POST /api/detect per client per minute when Redis
	// is enabled. Zero disables the limit.
	DetectRateLimit int `toml:"detect_rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string  `toml:"telegram_token"`
	TelegramChatID    string  `toml:"telegram_chat_id"`
	DiscordWebhookURL string  `toml:"discord_webhook_url"`
	MinProfit         float64 `toml:"min_profit"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Detection: DetectionConfig{
			Exchange: "binance",
			Interval: duration{time.Minute},
			Timeout:  duration{30 * time.Second},
		},
		Binance: BinanceConfig{
			BaseURL:           "https://api.binance.com",
			Timeout:           duration{10 * time.Second},
			RequestsPerSecond: 5,
		},
		Snapshot: SnapshotConfig{
			BlobPrefix:     "snapshots/",
			ReplayExchange: "binance",
			Archive:        true,
		},
		Redis: RedisConfig{
			Port:       6379,
			Key:        "triarb",
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: true,
			LockTTL:    duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "triarb",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000"},
			DetectRateLimit: 30,
		},
		Notify: NotifyConfig{
			MinProfit: 1.0,
		},
		Mode:     "once",
		LogLevel: "info",
	}
}

// ExchangeIDs returns the default exchange followed by the extra exchanges,
// lower-cased and without duplicates.
func (c *Config) ExchangeIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ex := range append([]string{c.Detection.Exchange}, c.Detection.Exchanges...) {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if ex == "" || seen[ex] {
			continue
		}
		seen[ex] = true
		out = append(out, ex)
	}
	return out
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"once":    true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: once, monitor, server)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Detection
	if strings.TrimSpace(c.Detection.Exchange) == "" {
		add("detection: exchange must not be empty")
	}
	if mode != "once" && c.Detection.Interval.Duration <= 0 {
		add("detection: interval must be > 0 for mode %s", mode)
	}
	if c.Detection.Timeout.Duration <= 0 {
		add("detection: timeout must be > 0")
	}
	for _, ex := range c.ExchangeIDs() {
		switch ex {
		case "file":
			if c.Snapshot.Path == "" {
				add("snapshot: path is required for exchange %q", ex)
			}
		case "replay":
			if !c.S3.Enabled() {
				add("s3: bucket is required for exchange %q", ex)
			}
		}
	}

	// Binance
	if c.Binance.RequestsPerSecond < 0 {
		add("binance: requests_per_second must be >= 0")
	}

	// Redis
	if c.Redis.Enabled() {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			add("redis: port must be 1-65535, got %d", c.Redis.Port)
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if strings.TrimSpace(c.Redis.Key) == "" {
			add("redis: key must not be empty")
		}
	}

	// Postgres
	if c.Postgres.Enabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Server
	if mode == "server" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.DetectRateLimit < 0 {
		add("server: detect_rate_limit must be >= 0")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.MinProfit < 0 {
		add("notify: min_profit must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}
