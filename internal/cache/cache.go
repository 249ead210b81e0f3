// Package cache holds the Redis-backed shared state of the sync engine:
// per-store credential versions and webhook delivery guards.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "erpbridge"
	pingTimeout      = 5 * time.Second
)

// New creates a Redis client for addr and checks that the server answers.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}

	return client, nil
}

func keyPrefix(prefix string) string {
	if prefix == "" {
		return defaultKeyPrefix
	}
	return prefix
}
