package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

// jsonDocs reads and writes whole RedisJSON documents.
type jsonDocs interface {
	set(ctx context.Context, key string, doc []byte) error
	get(ctx context.Context, key string) (string, error)
}

// redisJSON is jsonDocs over JSON.SET / JSON.GET at the root path.
type redisJSON struct {
	rdb *redis.Client
}

func (r redisJSON) set(ctx context.Context, key string, doc []byte) error {
	return r.rdb.JSONSet(ctx, key, "$", doc).Err()
}

func (r redisJSON) get(ctx context.Context, key string) (string, error) {
	return r.rdb.JSONGet(ctx, key).Result()
}

// ResultSink stores the latest detection of each exchange as a RedisJSON
// document at "<prefix>:<exchange>", overwriting the previous one.
type ResultSink struct {
	docs   jsonDocs
	prefix string
}

// NewResultSink creates a ResultSink writing under the given key prefix.
func NewResultSink(c *Client, prefix string) *ResultSink {
	return &ResultSink{docs: redisJSON{rdb: c.Underlying()}, prefix: prefix}
}

// ResultKey returns the document key for an exchange.
func ResultKey(prefix, exchange string) string {
	return prefix + ":" + exchange
}

// Name identifies the sink in logs.
func (s *ResultSink) Name() string { return "redis" }

// Publish writes the detection record with JSON.SET at the root path.
func (s *ResultSink) Publish(ctx context.Context, d domain.Detection) error {
	payload, err := json.Marshal(d.Record())
	if err != nil {
		return fmt.Errorf("redis: marshal result: %w", err)
	}
	key := ResultKey(s.prefix, d.Exchange)
	if err := s.docs.set(ctx, key, payload); err != nil {
		return fmt.Errorf("redis: json set %s: %w", key, err)
	}
	return nil
}

// Latest reads back the stored record for an exchange. It returns
// domain.ErrNotFound when nothing has been stored yet.
func (s *ResultSink) Latest(ctx context.Context, exchange string) (domain.ResultRecord, error) {
	key := ResultKey(s.prefix, exchange)
	raw, err := s.docs.get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ResultRecord{}, fmt.Errorf("redis: latest %s: %w", exchange, domain.ErrNotFound)
		}
		return domain.ResultRecord{}, fmt.Errorf("redis: json get %s: %w", key, err)
	}
	if raw == "" {
		return domain.ResultRecord{}, fmt.Errorf("redis: latest %s: %w", exchange, domain.ErrNotFound)
	}

	var rec domain.ResultRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.ResultRecord{}, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return rec, nil
}

// Compile-time interface checks.
var (
	_ domain.ResultSink   = (*ResultSink)(nil)
	_ domain.ResultReader = (*ResultSink)(nil)
)
