// Package cache keeps the most recent stored reading per user in Redis so the
// ingest path can skip the store lookup.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sguter90/soilmaestro/pkg/models"
)

const (
	keyPrefix  = "reading:last:"
	DefaultTTL = 24 * time.Hour
)

// LatestReadings is a Redis backed latest-reading cache
type LatestReadings struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, opts Options) (*LatestReadings, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", opts.Addr, err)
	}

	return NewWithClient(client, opts.TTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl time.Duration) *LatestReadings {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LatestReadings{client: client, ttl: ttl}
}

// Key returns the cache key of a user
func Key(userID string) string {
	return keyPrefix + userID
}

// Get returns the cached reading of a user, or (nil, nil) on a miss
func (c *LatestReadings) Get(ctx context.Context, userID string) (*models.Reading, error) {
	raw, err := c.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached reading: %w", err)
	}

	var r models.Reading
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode cached reading: %w", err)
	}
	return &r, nil
}

// Set caches r as the latest reading of its user
func (c *LatestReadings) Set(ctx context.Context, r models.Reading) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	if err := c.client.Set(ctx, Key(r.UserID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache reading: %w", err)
	}
	return nil
}

// Ping checks the connection
func (c *LatestReadings) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client
func (c *LatestReadings) Close() error {
	return c.client.Close()
}
