package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/training-appointments/internal/availability"
)

const generationKey = "availability:gen"

// AvailabilityCache stores computed availability ranges. Entries are keyed by
// a generation counter, so a single INCR drops every cached range after any
// appointment or off-day write.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func rangeKey(gen int64, start, end civil.Date) string {
	return fmt.Sprintf("availability:%d:%s:%s", gen, start, end)
}

// Generation returns the current cache generation. Read it before loading the
// snapshots a cached value is computed from.
func (c *AvailabilityCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

func (c *AvailabilityCache) Get(ctx context.Context, gen int64, start, end civil.Date) ([]availability.DateAvailability, bool, error) {
	raw, err := c.client.Get(ctx, rangeKey(gen, start, end)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached availability: %w", err)
	}

	var days []availability.DateAvailability
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, false, fmt.Errorf("decode cached availability: %w", err)
	}
	return days, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, gen int64, start, end civil.Date, days []availability.DateAvailability) error {
	raw, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	if err := c.client.Set(ctx, rangeKey(gen, start, end), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached availability: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}
