package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Versions tracks a counter per store that changes whenever the store's ERP credentials change.
type Versions struct {
	client redis.Cmdable
	prefix string
}

// NewVersions creates a credential version tracker. An empty prefix uses the default key prefix.
func NewVersions(client redis.Cmdable, prefix string) (*Versions, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Versions{client: client, prefix: keyPrefix(prefix)}, nil
}

// CredentialsVersion returns the store's current credential version, or 0 when it was never bumped.
func (v *Versions) CredentialsVersion(ctx context.Context, storeID string) (int64, error) {
	n, err := v.client.Get(ctx, v.key(storeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading credentials version for store %s: %w", storeID, err)
	}
	return n, nil
}

// Bump advances the store's credential version and returns the new value.
func (v *Versions) Bump(ctx context.Context, storeID string) (int64, error) {
	n, err := v.client.Incr(ctx, v.key(storeID)).Result()
	if err != nil {
		return 0, fmt.Errorf("bumping credentials version for store %s: %w", storeID, err)
	}
	return n, nil
}

func (v *Versions) key(storeID string) string {
	return v.prefix + ":credentials-version:" + storeID
}
