package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

// OpportunityChannel carries every detection as JSON.
const OpportunityChannel = "ch:opportunity"

// SignalBus implements domain.SignalBus using Redis Pub/Sub.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Redis Pub/Sub subscription and returns a read-only
// channel that emits raw byte payloads. The subscription and the returned
// channel are closed when the context is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// Wait for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// hasPattern returns true when the Redis channel includes glob-style
// wildcards, in which case PSubscribe must be used instead of Subscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// BroadcastSink publishes each detection on a SignalBus channel so that
// WebSocket hubs in every replica can relay it.
type BroadcastSink struct {
	bus     domain.SignalBus
	channel string
}

// NewBroadcastSink creates a sink publishing on channel.
func NewBroadcastSink(bus domain.SignalBus, channel string) *BroadcastSink {
	return &BroadcastSink{bus: bus, channel: channel}
}

// Name identifies the sink in logs.
func (s *BroadcastSink) Name() string { return "broadcast" }

// Publish marshals the detection and publishes it.
func (s *BroadcastSink) Publish(ctx context.Context, d domain.Detection) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("redis: marshal detection: %w", err)
	}
	return s.bus.Publish(ctx, s.channel, payload)
}

// Compile-time interface checks.
var (
	_ domain.SignalBus  = (*SignalBus)(nil)
	_ domain.ResultSink = (*BroadcastSink)(nil)
)
