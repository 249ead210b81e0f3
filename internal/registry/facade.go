package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/peteski22/erpbridge/internal/mapper"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

var (
	// ErrDeliveryInFlight indicates the same webhook delivery is still being processed elsewhere.
	ErrDeliveryInFlight = errors.New("webhook delivery in flight")

	// ErrStoreMismatch indicates a webhook payload names a different store than the one it was delivered to.
	ErrStoreMismatch = errors.New("webhook store mismatch")
)

// fullSyncTables are the tables pushed by SyncAll.
var fullSyncTables = []string{erpsync.TableProducts, erpsync.TableCustomers, erpsync.TableOrders}

// SyncConfig selects the tables of a store to push.
type SyncConfig struct {
	// BatchSize overrides the orchestrator's batch size when positive.
	BatchSize int `json:"batchSize" validate:"gte=0"`

	// StoreID is the store to sync.
	StoreID string `json:"storeId" validate:"required"`

	// Tables are pushed in order.
	Tables []string `json:"tables" validate:"required,min=1,dive,required"`
}

// SyncAll pushes the store's products, customers and orders.
func (r *Registry) SyncAll(ctx context.Context, storeID string) (erpsync.TableResults, error) {
	return r.SyncTables(ctx, SyncConfig{StoreID: storeID, Tables: fullSyncTables})
}

// SyncTables pushes the requested tables of a store.
func (r *Registry) SyncTables(ctx context.Context, cfg SyncConfig) (erpsync.TableResults, error) {
	if err := r.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid sync config: %w", err)
	}

	orch, err := r.Instance(ctx, cfg.StoreID)
	if err != nil {
		return nil, err
	}
	return orch.SyncTablesWithBatchSize(ctx, cfg.Tables, cfg.BatchSize)
}

// LastSyncTimes returns when each named table of a store last finished syncing.
func (r *Registry) LastSyncTimes(ctx context.Context, storeID string, tables []string) (map[string]time.Time, error) {
	orch, err := r.Instance(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return orch.LastSyncTimes(ctx, tables)
}

// SyncProductsToERP pushes exactly the given products, or the latest batch when ids is empty.
func (r *Registry) SyncProductsToERP(ctx context.Context, storeID string, ids []string) ([]mapper.Result, error) {
	orch, err := r.Instance(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orch.SyncProducts(ctx)
	}
	return orch.SyncProductsByID(ctx, ids), nil
}

// SyncOrdersToERP pushes exactly the given orders, or the latest batch when ids is empty.
func (r *Registry) SyncOrdersToERP(ctx context.Context, storeID string, ids []string) ([]mapper.Result, error) {
	orch, err := r.Instance(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orch.SyncOrders(ctx)
	}
	return orch.SyncOrdersByID(ctx, ids), nil
}

// HandleERPWebhook applies an ERP event to the store's local records.
// With a deduper configured, a repeated delivery of an applied document revision is reported
// as a duplicate and changes nothing. A repeat that arrives while the first is still processing
// fails with ErrDeliveryInFlight so the ERP retries it, and a failed delivery is released.
func (r *Registry) HandleERPWebhook(
	ctx context.Context,
	storeID string,
	payload erpsync.WebhookPayload,
) (*erpsync.WebhookResult, error) {
	if payload.StoreID == "" {
		payload.StoreID = storeID
	}
	if payload.StoreID != storeID {
		return nil, fmt.Errorf("%w: webhook for store %s delivered to store %s", ErrStoreMismatch, payload.StoreID, storeID)
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	key, claimed, done, err := r.claimDelivery(ctx, payload)
	if err != nil {
		return nil, err
	}
	if key != "" && !claimed {
		if !done {
			return nil, fmt.Errorf("%w: %s %s", ErrDeliveryInFlight, payload.Doctype, payload.Name)
		}
		r.logger.Info("skipping duplicate webhook delivery", "store_id", storeID, "doctype", payload.Doctype, "name", payload.Name)
		return &erpsync.WebhookResult{Doctype: payload.Doctype, Duplicate: true, Name: payload.Name}, nil
	}

	res, err := r.handleWebhook(ctx, storeID, payload)
	if key == "" {
		return res, err
	}

	if err != nil {
		if relErr := r.deduper.Release(ctx, key); relErr != nil {
			r.logger.Warn("failed to release webhook delivery", "store_id", storeID, "key", key, "error", relErr)
		}
		return res, err
	}
	if doneErr := r.deduper.Complete(ctx, key); doneErr != nil {
		r.logger.Warn("failed to complete webhook delivery", "store_id", storeID, "key", key, "error", doneErr)
	}
	return res, nil
}

func (r *Registry) handleWebhook(
	ctx context.Context,
	storeID string,
	payload erpsync.WebhookPayload,
) (*erpsync.WebhookResult, error) {
	orch, err := r.Instance(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return orch.HandleWebhook(ctx, payload)
}

// claimDelivery claims the payload's delivery key. An empty key means the delivery is not deduplicated,
// either because no deduper is configured or because the event carries no modified timestamp.
func (r *Registry) claimDelivery(ctx context.Context, payload erpsync.WebhookPayload) (key string, claimed bool, done bool, err error) {
	if r.deduper == nil {
		return "", false, false, nil
	}

	modified, _ := payload.Data["modified"].(string)
	if modified == "" {
		return "", false, false, nil
	}

	key = strings.Join([]string{payload.StoreID, payload.Doctype, payload.Name, modified}, "|")
	claimed, done, err = r.deduper.Claim(ctx, key)
	if err != nil {
		return "", false, false, fmt.Errorf("checking webhook delivery: %w", err)
	}
	return key, claimed, done, nil
}
