package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventDeduper implements ports.EventDeduper using Redis SET NX.
// The gateway_events table stays the durable record; this only filters hot redeliveries.
type EventDeduper struct {
	client *goredis.Client
	prefix string
}

// NewEventDeduper creates a new Redis-backed event deduper.
func NewEventDeduper(client *goredis.Client) *EventDeduper {
	return &EventDeduper{
		client: client,
		prefix: "gateway_event:",
	}
}

// MarkSeen atomically records the event id.
// Returns true if the id is new, false if it was already marked.
func (d *EventDeduper) MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	result, err := d.client.SetArgs(ctx, d.prefix+eventID, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event mark: %w", err)
	}
	return result == "OK", nil
}

// Forget drops the marker so a redelivery is processed again.
func (d *EventDeduper) Forget(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, d.prefix+eventID).Err(); err != nil {
		return fmt.Errorf("redis event forget: %w", err)
	}
	return nil
}
