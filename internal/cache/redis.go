// Package cache wraps the Redis client used for short-lived keys such as revoked tokens.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a thin key/value facade over a go-redis client.
type Redis struct {
	rdb *redis.Client
}

// New creates a client. The connection is established lazily; call Ping to verify it.
func New(cfg Config) *Redis {
	return &Redis{rdb: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// Ping checks that Redis is reachable.
func (c *Redis) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the client's connections.
func (c *Redis) Close() {
	if err := c.rdb.Close(); err != nil {
		log.Printf("cache: close failed: %v", err)
	}
}

// SetNX stores val under key only if key is absent. A zero ttl means no expiry.
func (c *Redis) SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %q: %w", key, err)
	}
	return ok, nil
}

// Exists reports whether key is present.
func (c *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return n == 1, nil
}
