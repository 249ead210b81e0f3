package sync

import (
	"context"

	"github.com/peteski22/erpbridge/internal/erp"
)

// ERPClient defines the ERP operations required by the orchestrator.
type ERPClient interface {
	// Action invokes a workflow method on a document, e.g. submit.
	Action(ctx context.Context, doc erp.Record, action string) (erp.Record, error)

	// Create inserts a new record of the given doctype.
	Create(ctx context.Context, doctype string, data any) (erp.Record, error)

	// Exists resolves a lookup, reporting a missing record as (nil, false, nil).
	Exists(ctx context.Context, doctype string, lookup erp.Lookup) (erp.Record, bool, error)

	// Get returns a record by name.
	Get(ctx context.Context, doctype string, name string) (erp.Record, error)

	// List returns the records matching params.
	List(ctx context.Context, doctype string, params erp.ListParams) ([]erp.Record, error)

	// Update writes a partial payload to an existing record.
	Update(ctx context.Context, doctype string, name string, data any) (erp.Record, error)
}

// ClientFactory builds an ERP client for a store's credentials.
type ClientFactory func(creds erp.Credentials) (ERPClient, error)

// NewERPClientFactory returns a factory producing REST clients with the given options.
func NewERPClientFactory(opts ...erp.Option) ClientFactory {
	return func(creds erp.Credentials) (ERPClient, error) {
		client, err := erp.NewClient(creds, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
