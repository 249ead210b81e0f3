package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/peteski22/erpbridge/internal/erp"
)

// dryRunClient wraps an ERPClient and logs write operations instead of executing them.
type dryRunClient struct {
	client  ERPClient
	logger  *slog.Logger
	counter uint64
}

// newDryRunClient creates a new dryRunClient that wraps the given ERPClient.
func newDryRunClient(client ERPClient, logger *slog.Logger) *dryRunClient {
	return &dryRunClient{
		client: client,
		logger: logger,
	}
}

// Action logs the workflow action and returns the document unchanged.
func (d *dryRunClient) Action(_ context.Context, doc erp.Record, action string) (erp.Record, error) {
	d.logger.Info("[DRY-RUN] would run action",
		"doctype", doc.String("doctype"),
		"erp_name", doc.Name(),
		"action", action)

	return doc, nil
}

// Create logs what would be created and returns the payload under a fake name.
func (d *dryRunClient) Create(_ context.Context, doctype string, data any) (erp.Record, error) {
	rec := payloadRecord(data)
	rec["name"] = d.nextFakeName(doctype)
	rec["doctype"] = doctype

	d.logger.Info("[DRY-RUN] would create",
		"doctype", doctype,
		"fake_name", rec.Name(),
		"external_id", rec.String(erp.FieldExternalID))

	return rec, nil
}

// Exists delegates to the real client.
func (d *dryRunClient) Exists(ctx context.Context, doctype string, lookup erp.Lookup) (erp.Record, bool, error) {
	return d.client.Exists(ctx, doctype, lookup)
}

// Get delegates to the real client.
func (d *dryRunClient) Get(ctx context.Context, doctype string, name string) (erp.Record, error) {
	return d.client.Get(ctx, doctype, name)
}

// List delegates to the real client.
func (d *dryRunClient) List(ctx context.Context, doctype string, params erp.ListParams) ([]erp.Record, error) {
	return d.client.List(ctx, doctype, params)
}

// Update logs what would be updated and returns the payload under the given name.
func (d *dryRunClient) Update(_ context.Context, doctype string, name string, data any) (erp.Record, error) {
	rec := payloadRecord(data)
	rec["name"] = name
	rec["doctype"] = doctype

	d.logger.Info("[DRY-RUN] would update",
		"doctype", doctype,
		"erp_name", name,
		"fields", len(rec)-2)

	return rec, nil
}

// nextFakeName generates a unique fake record name for dry-run operations.
func (d *dryRunClient) nextFakeName(doctype string) string {
	n := atomic.AddUint64(&d.counter, 1)
	return fmt.Sprintf("dry-run-%s-%d", doctype, n)
}

// payloadRecord renders a payload the way the ERP would echo it back.
func payloadRecord(data any) erp.Record {
	rec := erp.Record{}
	b, err := json.Marshal(data)
	if err != nil {
		return rec
	}
	_ = json.Unmarshal(b, &rec)
	if rec == nil {
		rec = erp.Record{}
	}
	return rec
}
