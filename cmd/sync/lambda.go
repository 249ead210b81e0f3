package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/peteski22/erpbridge/internal/config"
	"github.com/peteski22/erpbridge/internal/mapper"
	"github.com/peteski22/erpbridge/internal/registry"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

// tableSyncer runs a table sync for one store and reports its progress.
type tableSyncer interface {
	LastSyncTimes(ctx context.Context, storeID string, tables []string) (map[string]time.Time, error)
	SyncTables(ctx context.Context, cfg registry.SyncConfig) (erpsync.TableResults, error)
}

// scheduledEvent is the input of a scheduled sync. Empty fields fall back to the configured defaults.
type scheduledEvent struct {
	BatchSize int      `json:"batchSize,omitempty"`
	StoreIDs  []string `json:"storeIds,omitempty"`
	Tables    []string `json:"tables,omitempty"`
}

// syncSummary reports a scheduled sync per store.
type syncSummary struct {
	FailedStores int            `json:"failedStores"`
	Stores       []storeSummary `json:"stores"`
}

// storeSummary reports one store's sync.
type storeSummary struct {
	Error   string                  `json:"error,omitempty"`
	StoreID string                  `json:"storeId"`
	Tables  map[string]tableSummary `json:"tables,omitempty"`
}

// tableSummary counts a table's results by action.
type tableSummary struct {
	Created      int        `json:"created"`
	Exists       int        `json:"exists"`
	Failed       int        `json:"failed"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	Skipped      int        `json:"skipped"`
	Total        int        `json:"total"`
	Updated      int        `json:"updated"`
}

// newScheduledHandler returns the Lambda handler for scheduled syncs.
// Every store is attempted and a store failure is reported in its summary entry,
// so the invocation only fails when there is nothing to sync.
func newScheduledHandler(
	syncer tableSyncer,
	defaults config.Sync,
	logger *slog.Logger,
) func(context.Context, scheduledEvent) (*syncSummary, error) {
	return func(ctx context.Context, event scheduledEvent) (*syncSummary, error) {
		storeIDs := event.StoreIDs
		if len(storeIDs) == 0 {
			storeIDs = defaults.StoreIDs
		}
		if len(storeIDs) == 0 {
			return nil, errors.New("no stores to sync")
		}
		tables := event.Tables
		if len(tables) == 0 {
			tables = defaults.Tables
		}

		logger.InfoContext(ctx, "starting scheduled sync", "stores", storeIDs, "tables", tables)

		summary := &syncSummary{Stores: make([]storeSummary, 0, len(storeIDs))}
		for _, storeID := range storeIDs {
			results, err := syncer.SyncTables(ctx, registry.SyncConfig{
				BatchSize: event.BatchSize,
				StoreID:   storeID,
				Tables:    tables,
			})

			store := storeSummary{StoreID: storeID, Tables: summarize(results)}
			if err != nil {
				logger.ErrorContext(ctx, "store sync failed", "store_id", storeID, "error", err)
				store.Error = err.Error()
				summary.FailedStores++
			}

			synced, err := syncer.LastSyncTimes(ctx, storeID, tables)
			if err != nil {
				logger.WarnContext(ctx, "reading last sync times failed", "store_id", storeID, "error", err)
			}
			for table, t := range synced {
				t := t
				ts := store.Tables[table]
				ts.LastSyncedAt = &t
				if store.Tables == nil {
					store.Tables = make(map[string]tableSummary)
				}
				store.Tables[table] = ts
			}

			summary.Stores = append(summary.Stores, store)
		}

		if summary.FailedStores > 0 {
			logger.ErrorContext(ctx, "scheduled sync finished with failures",
				"stores", len(storeIDs),
				"failed", summary.FailedStores,
				"summary", summary)
		} else {
			logger.InfoContext(ctx, "scheduled sync complete", "stores", len(storeIDs))
		}
		return summary, nil
	}
}

// summarize counts each table's results by action.
func summarize(results erpsync.TableResults) map[string]tableSummary {
	if len(results) == 0 {
		return nil
	}

	out := make(map[string]tableSummary, len(results))
	for table, res := range results {
		out[table] = tableSummary{
			Created: mapper.Count(res, mapper.ActionCreated),
			Exists:  mapper.Count(res, mapper.ActionExists),
			Failed:  mapper.Count(res, mapper.ActionFailed),
			Skipped: mapper.Count(res, mapper.ActionSkipped),
			Total:   len(res),
			Updated: mapper.Count(res, mapper.ActionUpdated),
		}
	}
	return out
}
