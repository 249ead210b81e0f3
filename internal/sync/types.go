// Package sync coordinates ERP synchronization for a single store: batched outbound pushes
// through the entity mappers and inbound webhook updates with conflict checks.
package sync

import (
	"context"
	"time"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/mapper"
)

// Table names accepted by SyncTables.
const (
	TableAddresses  = "addresses"
	TableCategories = "categories"
	TableCustomers  = "customers"
	TableHSNCodes   = "hsn-codes"
	TableOrders     = "orders"
	TableProducts   = "products"
)

// Tables lists every table SyncTables accepts.
var Tables = []string{
	TableAddresses,
	TableCategories,
	TableCustomers,
	TableHSNCodes,
	TableOrders,
	TableProducts,
}

// State is the lifecycle state of an orchestrator's ERP connection.
type State string

const (
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateUninitialized State = "uninitialized"
)

// TableResults holds the per-item results of each synced table.
type TableResults map[string][]mapper.Result

// WebhookPayload is an inbound ERP event.
type WebhookPayload struct {
	// Action is the ERP event, e.g. on_update. Informational only.
	Action string `json:"action"`

	// Data carries the document fields sent with the event.
	Data map[string]any `json:"data,omitempty"`

	// Doctype selects the handler.
	Doctype string `json:"doctype" validate:"required"`

	// Name is the ERP record name.
	Name string `json:"name" validate:"required"`

	// StoreID is the store the event belongs to.
	StoreID string `json:"storeId,omitempty"`
}

// WebhookResult is the local record touched by a webhook.
type WebhookResult struct {
	// Doctype is the ERP doctype of the event.
	Doctype string `json:"doctype"`

	// Duplicate is set when the delivery was already processed and nothing changed.
	Duplicate bool `json:"duplicate,omitempty"`

	// Name is the ERP record name.
	Name string `json:"name"`

	// Order is the updated order, for Sales Order and Delivery Note events.
	Order *commerce.Order `json:"order,omitempty"`

	// Product is the updated product, for Item events.
	Product *commerce.Product `json:"product,omitempty"`
}

// EntityStore is the local repository of one entity type.
type EntityStore[T any] interface {
	// Create inserts an entity and returns it as stored.
	Create(ctx context.Context, entity T) (*T, error)

	// Distinct returns the distinct non-empty values of field within a store.
	Distinct(ctx context.Context, storeID string, field string) ([]string, error)

	// Find returns a page of a store's entities.
	Find(ctx context.Context, storeID string, query commerce.Query) ([]T, error)

	// FindFirst returns the first of a store's entities matching filter, or nil.
	FindFirst(ctx context.Context, storeID string, filter commerce.Filter) (*T, error)

	// FindUnique returns the entity with the given id, or nil.
	FindUnique(ctx context.Context, id string) (*T, error)

	// Update applies a partial update and returns the updated entity.
	Update(ctx context.Context, id string, patch commerce.Patch) (*T, error)
}

// Stores groups the local repositories the orchestrator reads and writes.
type Stores struct {
	Addresses  EntityStore[commerce.Address]
	Categories EntityStore[commerce.Category]
	Customers  EntityStore[commerce.Customer]
	Orders     EntityStore[commerce.Order]
	Products   EntityStore[commerce.Product]
}

// CredentialsProvider supplies per-store ERP credentials.
type CredentialsProvider interface {
	// StoreERPConfig returns the store's ERP credentials, or nil when none are configured.
	StoreERPConfig(ctx context.Context, storeID string) (*erp.Credentials, error)
}

// StateStore records sync progress per store and table.
type StateStore interface {
	// LastSyncTime returns when the table last finished syncing, or the zero time.
	LastSyncTime(ctx context.Context, storeID string, table string) (time.Time, error)

	// SetLastSyncTime records when the table finished syncing.
	SetLastSyncTime(ctx context.Context, storeID string, table string, t time.Time) error
}
