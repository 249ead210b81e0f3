package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewNoopStateStore(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	store := NewNoopStateStore(since)

	require.NotNil(t, store)
	require.Equal(t, since, store.since)
}

func TestNoopStateStore(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	store := NewNoopStateStore(since)
	ctx := context.Background()

	for _, table := range []string{"products", "orders"} {
		require.NoError(t, store.SetLastSyncTime(ctx, "s1", table, time.Now()))

		result, err := store.LastSyncTime(ctx, "s1", table)
		require.NoError(t, err)
		require.Equal(t, since, result)
	}
}
