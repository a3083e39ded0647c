// Package cache wraps the Redis client behind the visit counter and the
// scratch key/value endpoints.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/plinth-dev/plinth/internal/domain"
)

// Cache is a thin veneer over one Redis connection pool.
type Cache struct {
	client *redis.Client
}

// New connects to the Redis instance at url (redis://host:port/db). The
// connection is established lazily on first use.
func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts)}, nil
}

// IncrVisits bumps and returns the page visit counter.
func (c *Cache) IncrVisits(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, "visits").Result()
	if err != nil {
		return 0, fmt.Errorf("incr visits: %w", err)
	}
	return n, nil
}

// Get returns the value stored under key, or domain.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: key %q", domain.ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return val, nil
}

// Set stores value under key without expiry.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Ping verifies the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
