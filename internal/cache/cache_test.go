package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("reachable server", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)

		client, err := New(context.Background(), mr.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := New(context.Background(), addr)
		require.Error(t, err)
		require.Contains(t, err.Error(), "pinging redis")
		require.Nil(t, client)
	})
}

func TestVersions(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	versions, err := NewVersions(client, "")
	require.NoError(t, err)
	ctx := context.Background()

	v, err := versions.CredentialsVersion(ctx, "s1")
	require.NoError(t, err)
	require.Zero(t, v)

	v, err = versions.Bump(ctx, "s1")
	require.NoError(t, err)
	require.EqualValues(t, 1, v)

	v, err = versions.Bump(ctx, "s1")
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	v, err = versions.CredentialsVersion(ctx, "s1")
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	v, err = versions.CredentialsVersion(ctx, "s2")
	require.NoError(t, err)
	require.Zero(t, v)

	stored, err := mr.Get("erpbridge:credentials-version:s1")
	require.NoError(t, err)
	require.Equal(t, "2", stored)
}

func TestVersions_CorruptValue(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	versions, err := NewVersions(client, "test")
	require.NoError(t, err)
	require.NoError(t, mr.Set("test:credentials-version:s1", "not-a-number"))

	_, err = versions.CredentialsVersion(context.Background(), "s1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading credentials version for store s1")
}

func TestNewVersions_RequiresClient(t *testing.T) {
	t.Parallel()

	versions, err := NewVersions(nil, "")
	require.EqualError(t, err, "redis client is required")
	require.Nil(t, versions)
}

func TestWebhookDeduper(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	deduper, err := NewWebhookDeduper(client, "", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	key := "s1|Item|SKU-1|2026-04-01 12:00:00"

	claimed, done, err := deduper.Claim(ctx, key)
	require.NoError(t, err)
	require.True(t, claimed)
	require.False(t, done)
	require.Equal(t, ClaimTTL, mr.TTL("erpbridge:webhook:"+key))

	claimed, done, err = deduper.Claim(ctx, key)
	require.NoError(t, err)
	require.False(t, claimed)
	require.False(t, done)

	require.NoError(t, deduper.Complete(ctx, key))
	require.Equal(t, time.Hour, mr.TTL("erpbridge:webhook:"+key))

	claimed, done, err = deduper.Claim(ctx, key)
	require.NoError(t, err)
	require.False(t, claimed)
	require.True(t, done)

	claimed, _, err = deduper.Claim(ctx, "s1|Item|SKU-1|2026-04-01 12:00:05")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, deduper.Release(ctx, key))
	claimed, _, err = deduper.Claim(ctx, key)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestWebhookDeduper_Expiry(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	deduper, err := NewWebhookDeduper(client, "", 0)
	require.NoError(t, err)
	ctx := context.Background()

	claimed, _, err := deduper.Claim(ctx, "pending")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, _, err = deduper.Claim(ctx, "applied")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, deduper.Complete(ctx, "applied"))
	require.Equal(t, DefaultDeliveryTTL, mr.TTL("erpbridge:webhook:applied"))

	mr.FastForward(ClaimTTL + time.Second)

	claimed, _, err = deduper.Claim(ctx, "pending")
	require.NoError(t, err)
	require.True(t, claimed, "an abandoned claim expires")

	_, done, err := deduper.Claim(ctx, "applied")
	require.NoError(t, err)
	require.True(t, done)

	mr.FastForward(DefaultDeliveryTTL)

	claimed, _, err = deduper.Claim(ctx, "applied")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestWebhookDeduper_ShortTTL(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	deduper, err := NewWebhookDeduper(client, "", time.Minute)
	require.NoError(t, err)

	claimed, _, err := deduper.Claim(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, time.Minute, mr.TTL("erpbridge:webhook:k"))
}

func TestNewWebhookDeduper_Validation(t *testing.T) {
	t.Parallel()

	_, client := newTestRedis(t)

	tests := map[string]struct {
		client redis.Cmdable
		ttl    time.Duration
		errMsg string
	}{
		"missing client": {
			errMsg: "redis client is required",
		},
		"negative ttl": {
			client: client,
			ttl:    -time.Second,
			errMsg: "delivery TTL cannot be negative",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			deduper, err := NewWebhookDeduper(tc.client, "", tc.ttl)
			require.EqualError(t, err, tc.errMsg)
			require.Nil(t, deduper)
		})
	}
}
