package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/erpbridge/internal/cache"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/mapper"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

func TestRegistry_SyncTables(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg     SyncConfig
		errMsg  string
		errIs   error
		wantLen int
	}{
		"valid": {
			cfg:     SyncConfig{StoreID: "s1", Tables: []string{erpsync.TableProducts}},
			wantLen: 2,
		},
		"batch size override": {
			cfg:     SyncConfig{BatchSize: 1, StoreID: "s1", Tables: []string{erpsync.TableProducts}},
			wantLen: 1,
		},
		"missing store": {
			cfg:    SyncConfig{Tables: []string{erpsync.TableProducts}},
			errMsg: "invalid sync config",
		},
		"no tables": {
			cfg:    SyncConfig{StoreID: "s1"},
			errMsg: "invalid sync config",
		},
		"blank table": {
			cfg:    SyncConfig{StoreID: "s1", Tables: []string{""}},
			errMsg: "invalid sync config",
		},
		"negative batch size": {
			cfg:    SyncConfig{BatchSize: -1, StoreID: "s1", Tables: []string{erpsync.TableProducts}},
			errMsg: "invalid sync config",
		},
		"unknown table": {
			cfg:   SyncConfig{StoreID: "s1", Tables: []string{"invoices"}},
			errIs: erpsync.ErrUnknownTable,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.seedProduct(t, "p1", "SKU-1")
			env.seedProduct(t, "p2", "SKU-2")

			results, err := env.registry.SyncTables(context.Background(), tc.cfg)

			switch {
			case tc.errIs != nil:
				require.ErrorIs(t, err, tc.errIs)
				require.Empty(t, env.erp.Calls())
			case tc.errMsg != "":
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errMsg)
				require.Zero(t, env.builds.Load())
			default:
				require.NoError(t, err)
				require.Len(t, results[erpsync.TableProducts], tc.wantLen)
			}
		})
	}
}

func TestRegistry_SyncAll(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedProduct(t, "p1", "SKU-1")

	results, err := env.registry.SyncAll(context.Background(), "s1")

	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Contains(t, results, erpsync.TableProducts)
	require.Contains(t, results, erpsync.TableCustomers)
	require.Contains(t, results, erpsync.TableOrders)
	require.Equal(t, mapper.ActionCreated, results[erpsync.TableProducts][0].Action)
}

func TestRegistry_SyncProductsToERP(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ids      []string
		wantLen  int
		wantFail int
	}{
		"explicit ids": {
			ids:      []string{"p2", "missing"},
			wantLen:  2,
			wantFail: 1,
		},
		"latest batch": {
			wantLen: 2,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.seedProduct(t, "p1", "SKU-1")
			env.seedProduct(t, "p2", "SKU-2")

			results, err := env.registry.SyncProductsToERP(context.Background(), "s1", tc.ids)

			require.NoError(t, err)
			require.Len(t, results, tc.wantLen)
			require.Equal(t, tc.wantFail, mapper.Count(results, mapper.ActionFailed))
		})
	}
}

func TestRegistry_SyncOrdersToERP(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	results, err := env.registry.SyncOrdersToERP(context.Background(), "s1", []string{"o-missing"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, erpsync.ErrLocalRecordNotFound)

	results, err = env.registry.SyncOrdersToERP(context.Background(), "s1", nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func newDeduper(t *testing.T) (*miniredis.Miniredis, *cache.WebhookDeduper) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	deduper, err := cache.NewWebhookDeduper(client, "", time.Hour)
	require.NoError(t, err)
	return mr, deduper
}

func itemEvent(modified string) erpsync.WebhookPayload {
	return erpsync.WebhookPayload{
		Action:  "on_update",
		Data:    map[string]any{"modified": modified},
		Doctype: erp.DoctypeItem,
		Name:    "SKU-1",
	}
}

func TestRegistry_HandleERPWebhook(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedProduct(t, "p1", "SKU-1")
	env.erp.Put(erp.DoctypeItem, erp.Record{
		"name":               "SKU-1",
		"custom_external_id": "p1",
		"item_name":          "Green Tea",
		"modified":           "2026-04-01 12:30:00",
	})

	res, err := env.registry.HandleERPWebhook(context.Background(), "s1", itemEvent("2026-04-01 12:30:00"))

	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Equal(t, "Green Tea", res.Product.Title)
}

func TestRegistry_HandleERPWebhook_Validation(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		payload erpsync.WebhookPayload
		errMsg  string
	}{
		"missing name": {
			payload: erpsync.WebhookPayload{Doctype: erp.DoctypeItem},
			errMsg:  "invalid webhook payload",
		},
		"missing doctype": {
			payload: erpsync.WebhookPayload{Name: "SKU-1"},
			errMsg:  "invalid webhook payload",
		},
		"other store": {
			payload: erpsync.WebhookPayload{Doctype: erp.DoctypeItem, Name: "SKU-1", StoreID: "s2"},
			errMsg:  "webhook for store s2 delivered to store s1",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)

			res, err := env.registry.HandleERPWebhook(context.Background(), "s1", tc.payload)

			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
			require.Nil(t, res)
			require.Zero(t, env.builds.Load())
		})
	}
}

func TestRegistry_HandleERPWebhook_Dedup(t *testing.T) {
	t.Parallel()

	_, deduper := newDeduper(t)
	env := newTestEnv(t, func(c *Config) { c.Deduper = deduper })
	env.seedProduct(t, "p1", "SKU-1")
	env.erp.Put(erp.DoctypeItem, erp.Record{
		"name":               "SKU-1",
		"custom_external_id": "p1",
		"item_name":          "Green Tea",
		"modified":           "2026-04-01 12:30:00",
	})
	ctx := context.Background()

	res, err := env.registry.HandleERPWebhook(ctx, "s1", itemEvent("2026-04-01 12:30:00"))
	require.NoError(t, err)
	require.Equal(t, "Green Tea", res.Product.Title)

	env.erp.Put(erp.DoctypeItem, erp.Record{
		"name":               "SKU-1",
		"custom_external_id": "p1",
		"item_name":          "Black Tea",
		"modified":           "2026-04-01 12:30:00",
	})

	res, err = env.registry.HandleERPWebhook(ctx, "s1", itemEvent("2026-04-01 12:30:00"))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Nil(t, res.Product)

	product, err := env.products.FindUnique(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "Green Tea", product.Title)
	require.Equal(t, 1, env.erp.CountCalls("GET", erp.DoctypeItem))
}

func TestRegistry_HandleERPWebhook_ReleasesFailedDelivery(t *testing.T) {
	t.Parallel()

	_, deduper := newDeduper(t)
	env := newTestEnv(t, func(c *Config) { c.Deduper = deduper })
	env.seedProduct(t, "p1", "SKU-1")
	ctx := context.Background()

	_, err := env.registry.HandleERPWebhook(ctx, "s1", itemEvent("2026-04-01 12:30:00"))
	require.Error(t, err)
	require.True(t, erp.IsNotFound(err))

	env.erp.Put(erp.DoctypeItem, erp.Record{
		"name":               "SKU-1",
		"custom_external_id": "p1",
		"item_name":          "Green Tea",
		"modified":           "2026-04-01 12:30:00",
	})

	res, err := env.registry.HandleERPWebhook(ctx, "s1", itemEvent("2026-04-01 12:30:00"))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Equal(t, "Green Tea", res.Product.Title)
}

func TestRegistry_HandleERPWebhook_InFlightDelivery(t *testing.T) {
	t.Parallel()

	_, deduper := newDeduper(t)
	env := newTestEnv(t, func(c *Config) { c.Deduper = deduper })
	env.seedProduct(t, "p1", "SKU-1")
	env.erp.Put(erp.DoctypeItem, erp.Record{
		"name":               "SKU-1",
		"custom_external_id": "p1",
		"item_name":          "Green Tea",
		"modified":           "2026-04-01 12:30:00",
	})
	ctx := context.Background()
	key := "s1|Item|SKU-1|2026-04-01 12:30:00"

	claimed, _, err := deduper.Claim(ctx, key)
	require.NoError(t, err)
	require.True(t, claimed)

	res, err := env.registry.HandleERPWebhook(ctx, "s1", itemEvent("2026-04-01 12:30:00"))
	require.ErrorIs(t, err, ErrDeliveryInFlight)
	require.Nil(t, res)
	require.Empty(t, env.erp.Calls())

	// The first delivery fails and lets go of its claim; the retry is then applied.
	require.NoError(t, deduper.Release(ctx, key))

	res, err = env.registry.HandleERPWebhook(ctx, "s1", itemEvent("2026-04-01 12:30:00"))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Equal(t, "Green Tea", res.Product.Title)

	_, done, err := deduper.Claim(ctx, key)
	require.NoError(t, err)
	require.True(t, done)
}

func TestRegistry_HandleERPWebhook_DeduperUnavailable(t *testing.T) {
	t.Parallel()

	mr, deduper := newDeduper(t)
	env := newTestEnv(t, func(c *Config) { c.Deduper = deduper })
	mr.Close()

	_, err := env.registry.HandleERPWebhook(context.Background(), "s1", itemEvent("2026-04-01 12:30:00"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "checking webhook delivery")
	require.Empty(t, env.erp.Calls())
}
