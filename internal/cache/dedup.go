package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultDeliveryTTL is how long an applied webhook delivery is remembered when no TTL is given.
	DefaultDeliveryTTL = 24 * time.Hour

	// ClaimTTL caps how long an unfinished delivery blocks its retries.
	ClaimTTL = 5 * time.Minute

	deliveryDone    = "done"
	deliveryPending = "pending"
)

// WebhookDeduper remembers webhook deliveries so retries are applied once.
// A delivery is claimed as pending while it is processed and marked done once applied.
type WebhookDeduper struct {
	claimTTL time.Duration
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
}

// NewWebhookDeduper creates a delivery guard. Zero ttl uses DefaultDeliveryTTL.
func NewWebhookDeduper(client redis.Cmdable, prefix string, ttl time.Duration) (*WebhookDeduper, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl < 0 {
		return nil, errors.New("delivery TTL cannot be negative")
	}
	if ttl == 0 {
		ttl = DefaultDeliveryTTL
	}
	return &WebhookDeduper{
		claimTTL: min(ClaimTTL, ttl),
		client:   client,
		prefix:   keyPrefix(prefix),
		ttl:      ttl,
	}, nil
}

// Claim claims key for processing. When key is already claimed it reports claimed as false,
// and done as true once that delivery was applied.
func (d *WebhookDeduper) Claim(ctx context.Context, key string) (claimed bool, done bool, err error) {
	ok, err := d.client.SetNX(ctx, d.key(key), deliveryPending, d.claimTTL).Result()
	if err != nil {
		return false, false, fmt.Errorf("claiming webhook delivery %s: %w", key, err)
	}
	if ok {
		return true, false, nil
	}

	state, err := d.client.Get(ctx, d.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// The claim expired after SetNX; the sender's retry claims it again.
		return false, false, nil
	case err != nil:
		return false, false, fmt.Errorf("reading webhook delivery %s: %w", key, err)
	}
	return false, state == deliveryDone, nil
}

// Complete marks key as applied for the delivery TTL.
func (d *WebhookDeduper) Complete(ctx context.Context, key string) error {
	if err := d.client.Set(ctx, d.key(key), deliveryDone, d.ttl).Err(); err != nil {
		return fmt.Errorf("completing webhook delivery %s: %w", key, err)
	}
	return nil
}

// Release forgets key so a later delivery is processed again.
func (d *WebhookDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.key(key)).Err(); err != nil {
		return fmt.Errorf("releasing webhook delivery %s: %w", key, err)
	}
	return nil
}

func (d *WebhookDeduper) key(key string) string {
	return d.prefix + ":webhook:" + key
}
