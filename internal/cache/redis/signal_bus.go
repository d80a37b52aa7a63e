package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SignalBus publishes opportunity records over Redis Pub/Sub. Delivery is
// ephemeral: subscribers only see records published while connected, and the
// JSONL journal remains the durable record.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.rdb}
}

// Publish sends a raw payload to a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}
