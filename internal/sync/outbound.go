package sync

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/mapper"
)

const actionSubmit = "submit"

// tableSyncer pushes up to batch rows of one table to the ERP.
type tableSyncer func(o *Orchestrator, ctx context.Context, client ERPClient, m *mapper.Mappers, batch int) ([]mapper.Result, error)

// tableSyncers maps table names to their sync methods.
var tableSyncers = map[string]tableSyncer{
	TableAddresses:  (*Orchestrator).syncAddresses,
	TableCategories: (*Orchestrator).syncProductCategories,
	TableCustomers:  (*Orchestrator).syncCustomers,
	TableHSNCodes:   (*Orchestrator).syncHSNCodes,
	TableOrders:     (*Orchestrator).syncOrders,
	TableProducts:   (*Orchestrator).syncProducts,
}

// SyncTables pushes a batch of each named table to the ERP, in order.
// Unknown table names are rejected before anything is pushed. Per-item failures are
// reported in the results; a failure to read a table stops the run and returns what was synced so far.
func (o *Orchestrator) SyncTables(ctx context.Context, tables []string) (TableResults, error) {
	return o.SyncTablesWithBatchSize(ctx, tables, 0)
}

// SyncTablesWithBatchSize is SyncTables with a per-call batch size. Zero uses the configured size.
func (o *Orchestrator) SyncTablesWithBatchSize(ctx context.Context, tables []string, batchSize int) (TableResults, error) {
	if batchSize < 0 {
		return nil, fmt.Errorf("batch size cannot be negative: %d", batchSize)
	}
	if batchSize == 0 {
		batchSize = o.batchSize
	}

	var unique []string
	for _, table := range tables {
		if _, ok := tableSyncers[table]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
		}
		if !slices.Contains(unique, table) {
			unique = append(unique, table)
		}
	}

	client, mappers, err := o.connection(ctx)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID)
	logger.Info("starting sync", "tables", unique, "batch_size", batchSize, "dry_run", o.dryRun)

	out := make(TableResults, len(unique))
	for _, table := range unique {
		results, err := tableSyncers[table](o, ctx, client, mappers, batchSize)
		if err != nil {
			return out, fmt.Errorf("syncing %s: %w", table, err)
		}
		out[table] = results

		logger.Info("table synced",
			"table", table,
			"total", len(results),
			"created", mapper.Count(results, mapper.ActionCreated),
			"exists", mapper.Count(results, mapper.ActionExists),
			"skipped", mapper.Count(results, mapper.ActionSkipped),
			"failed", mapper.Count(results, mapper.ActionFailed))

		o.recordSync(ctx, table)
	}

	return out, nil
}

// SyncProducts pushes the most recently changed products.
func (o *Orchestrator) SyncProducts(ctx context.Context) ([]mapper.Result, error) {
	return o.syncTable(ctx, TableProducts)
}

// SyncOrders pushes the most recently changed orders.
func (o *Orchestrator) SyncOrders(ctx context.Context) ([]mapper.Result, error) {
	return o.syncTable(ctx, TableOrders)
}

func (o *Orchestrator) syncTable(ctx context.Context, table string) ([]mapper.Result, error) {
	results, err := o.SyncTables(ctx, []string{table})
	if err != nil {
		return nil, err
	}
	return results[table], nil
}

// recordSync stores the table's completion time. Failures are logged only.
func (o *Orchestrator) recordSync(ctx context.Context, table string) {
	if o.stateStore == nil || o.dryRun {
		return
	}
	if err := o.stateStore.SetLastSyncTime(ctx, o.storeID, table, o.clock()); err != nil {
		o.logger.Error("failed to record sync time", "table", table, "error", err)
	}
}

// LastSyncTimes returns when each named table last finished syncing for the store.
// Tables that never finished a sync are left out.
func (o *Orchestrator) LastSyncTimes(ctx context.Context, tables []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(tables))
	for _, table := range tables {
		if _, ok := tableSyncers[table]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
		}
		if o.stateStore == nil {
			continue
		}

		t, err := o.stateStore.LastSyncTime(ctx, o.storeID, table)
		if err != nil {
			return nil, fmt.Errorf("reading last sync time of %s: %w", table, err)
		}
		if !t.IsZero() {
			out[table] = t
		}
	}
	return out, nil
}

func (o *Orchestrator) syncProducts(ctx context.Context, _ ERPClient, m *mapper.Mappers, batch int) ([]mapper.Result, error) {
	products, err := o.stores.Products.Find(ctx, o.storeID, commerce.Newest(batch))
	if err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}

	groups := o.provisionProductPrerequisites(ctx, m, products)
	return m.Products.SyncAll(ctx, products, groups), nil
}

// provisionProductPrerequisites makes sure the item groups and HSN codes the products
// reference exist in the ERP. It is best-effort and returns category id to item group name.
func (o *Orchestrator) provisionProductPrerequisites(
	ctx context.Context,
	m *mapper.Mappers,
	products []commerce.Product,
) map[string]string {
	groups := make(map[string]string)
	ensured := make(map[string]bool)
	var hsnCodes []string

	for _, p := range products {
		if p.HSNCode != "" && !slices.Contains(hsnCodes, p.HSNCode) {
			hsnCodes = append(hsnCodes, p.HSNCode)
		}
		if p.CategoryID == "" {
			continue
		}
		if _, ok := groups[p.CategoryID]; ok {
			continue
		}

		category, err := findInStore(ctx, o.stores.Categories, o.storeID, p.CategoryID)
		if err != nil || category == nil {
			o.logger.Warn("product category unavailable, using default item group",
				"category_id", p.CategoryID,
				"error", err)
			groups[p.CategoryID] = ""
			continue
		}

		o.ensureCategoryParents(ctx, m, *category, ensured)
		res := m.Categories.CreateCategoryGroupIfNotExists(ctx, *category)
		if res.Action == mapper.ActionFailed {
			groups[p.CategoryID] = ""
			continue
		}
		groups[p.CategoryID] = category.Name
	}

	for _, code := range hsnCodes {
		res := m.Products.CreateHSNCodeIfNotExists(ctx, code, "")
		if res.Action == mapper.ActionFailed {
			o.logger.Warn("HSN code provisioning failed", "hsn_code", code, "error", res.Err)
		}
	}

	return groups
}

// ensureCategoryParents pushes the stored ancestors of c, root first, as item groups.
// Ancestors in skip are left alone, and every pushed ancestor is added to it.
func (o *Orchestrator) ensureCategoryParents(ctx context.Context, m *mapper.Mappers, c commerce.Category, skip map[string]bool) {
	var chain []commerce.Category
	seen := map[string]bool{c.ID: true}
	for parentID := c.ParentID; parentID != "" && !seen[parentID] && !skip[parentID]; {
		seen[parentID] = true
		parent, err := findInStore(ctx, o.stores.Categories, o.storeID, parentID)
		if err != nil || parent == nil {
			o.logger.Warn("parent category unavailable", "category_id", c.ID, "parent_id", parentID, "error", err)
			break
		}
		parent.IsGroup = true
		chain = append(chain, *parent)
		parentID = parent.ParentID
	}

	for i := len(chain) - 1; i >= 0; i-- {
		skip[chain[i].ID] = true
		if res := m.Categories.Upsert(ctx, chain[i]); !res.Success {
			o.logger.Warn("parent category push failed", "category_id", chain[i].ID, "error", res.Err)
			return
		}
	}
}

// syncProductCategories pushes a batch of categories after any ancestors the batch leaves out.
func (o *Orchestrator) syncProductCategories(ctx context.Context, _ ERPClient, m *mapper.Mappers, batch int) ([]mapper.Result, error) {
	categories, err := o.stores.Categories.Find(ctx, o.storeID, commerce.Newest(batch))
	if err != nil {
		return nil, fmt.Errorf("fetching categories: %w", err)
	}

	skip := make(map[string]bool, len(categories))
	for _, c := range categories {
		skip[c.ID] = true
	}
	for _, c := range categories {
		o.ensureCategoryParents(ctx, m, c, skip)
	}

	return m.Categories.SyncAll(ctx, categories), nil
}

func (o *Orchestrator) syncCustomers(ctx context.Context, _ ERPClient, m *mapper.Mappers, batch int) ([]mapper.Result, error) {
	customers, err := o.stores.Customers.Find(ctx, o.storeID, commerce.Newest(batch))
	if err != nil {
		return nil, fmt.Errorf("fetching customers: %w", err)
	}
	return m.Customers.SyncAll(ctx, customers), nil
}

func (o *Orchestrator) syncAddresses(ctx context.Context, _ ERPClient, m *mapper.Mappers, batch int) ([]mapper.Result, error) {
	addresses, err := o.stores.Addresses.Find(ctx, o.storeID, commerce.Newest(batch))
	if err != nil {
		return nil, fmt.Errorf("fetching addresses: %w", err)
	}
	return m.Addresses.SyncAll(ctx, addresses), nil
}

// syncHSNCodes provisions each distinct HSN code used by the store's products once.
func (o *Orchestrator) syncHSNCodes(ctx context.Context, _ ERPClient, m *mapper.Mappers, batch int) ([]mapper.Result, error) {
	values, err := o.stores.Products.Distinct(ctx, o.storeID, commerce.FieldHSNCode)
	if err != nil {
		return nil, fmt.Errorf("fetching HSN codes: %w", err)
	}

	codes := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" && !slices.Contains(codes, v) {
			codes = append(codes, v)
		}
		if len(codes) == batch {
			break
		}
	}

	return mapper.SyncEach(ctx, o.concurrency, codes, func(ctx context.Context, code string) mapper.Result {
		return m.Products.CreateHSNCodeIfNotExists(ctx, code, "")
	}), nil
}

func (o *Orchestrator) syncOrders(ctx context.Context, client ERPClient, m *mapper.Mappers, batch int) ([]mapper.Result, error) {
	orders, err := o.stores.Orders.Find(ctx, o.storeID, commerce.Newest(batch))
	if err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}

	var customerIDs []string
	for _, order := range orders {
		if order.CustomerID != "" && !slices.Contains(customerIDs, order.CustomerID) {
			customerIDs = append(customerIDs, order.CustomerID)
		}
	}
	mapper.SyncEach(ctx, o.concurrency, customerIDs, func(ctx context.Context, id string) mapper.Result {
		res, err := o.ensureCustomer(ctx, m, id)
		if err != nil {
			o.logger.Warn("order customer unavailable", "customer_id", id, "error", err)
		}
		return res
	})

	results := m.Orders.SyncAll(ctx, orders)
	for _, res := range results {
		if res.Action == mapper.ActionCreated {
			o.submitOrder(ctx, client, res.Data)
		}
	}
	return results, nil
}

// ensureCustomer pushes a local customer unless it is already linked in the ERP.
func (o *Orchestrator) ensureCustomer(ctx context.Context, m *mapper.Mappers, customerID string) (mapper.Result, error) {
	customer, err := findInStore(ctx, o.stores.Customers, o.storeID, customerID)
	if err != nil {
		return mapper.Failed(customerID, err), fmt.Errorf("fetching customer %s: %w", customerID, err)
	}
	if customer == nil {
		err := fmt.Errorf("%w: customer %s", ErrLocalRecordNotFound, customerID)
		return mapper.Failed(customerID, err), err
	}

	res := m.Customers.Upsert(ctx, *customer)
	if !res.Success {
		return res, res.Err
	}
	return res, nil
}

// submitOrder submits a newly created Sales Order when enabled. Failures leave it as a draft.
func (o *Orchestrator) submitOrder(ctx context.Context, client ERPClient, doc erp.Record) {
	if !o.submitOrders || doc == nil {
		return
	}
	if _, err := client.Action(ctx, doc, actionSubmit); err != nil {
		o.logger.Warn("sales order left as draft", "erp_name", doc.Name(), "error", err)
	}
}

// SyncProductToERP pushes one product without a prior lookup.
// When the ERP already holds the product it is updated in place.
func (o *Orchestrator) SyncProductToERP(ctx context.Context, product commerce.Product) (mapper.Result, error) {
	if !product.BelongsTo(o.storeID) {
		return mapper.Result{}, fmt.Errorf("%w: product %s belongs to store %q", ErrForeignRecord, product.ID, product.StoreID)
	}

	client, m, err := o.connection(ctx)
	if err != nil {
		return mapper.Result{}, err
	}

	groups := o.provisionProductPrerequisites(ctx, m, []commerce.Product{product})
	group := groups[product.CategoryID]

	rec, err := m.Products.Create(ctx, product, group)
	if err == nil {
		return mapper.Created(product.ID, rec), nil
	}
	if !erp.IsDuplicate(err) {
		return mapper.Result{}, err
	}

	existing, err := o.linkedRecord(ctx, client, erp.DoctypeItem, product.ID)
	if err != nil {
		return mapper.Result{}, err
	}
	rec, err = m.Products.Update(ctx, existing.Name(), product, group)
	if err != nil {
		return mapper.Result{}, err
	}
	return mapper.Updated(product.ID, rec), nil
}

// SyncOrderToERP pushes one order without a prior lookup, creating its customer when needed.
// When the ERP already holds the order it is updated in place.
func (o *Orchestrator) SyncOrderToERP(ctx context.Context, order commerce.Order) (mapper.Result, error) {
	if !order.BelongsTo(o.storeID) {
		return mapper.Result{}, fmt.Errorf("%w: order %s belongs to store %q", ErrForeignRecord, order.ID, order.StoreID)
	}

	client, m, err := o.connection(ctx)
	if err != nil {
		return mapper.Result{}, err
	}

	if _, err := o.ensureCustomer(ctx, m, order.CustomerID); err != nil {
		return mapper.Result{}, fmt.Errorf("ensuring customer for order %s: %w", order.ID, err)
	}

	rec, err := m.Orders.Create(ctx, order)
	if err == nil {
		o.submitOrder(ctx, client, rec)
		return mapper.Created(order.ID, rec), nil
	}
	if !erp.IsDuplicate(err) {
		return mapper.Result{}, err
	}

	existing, err := o.linkedRecord(ctx, client, erp.DoctypeSalesOrder, order.ID)
	if err != nil {
		return mapper.Result{}, err
	}
	rec, err = m.Orders.Update(ctx, existing.Name(), order)
	if err != nil {
		return mapper.Result{}, err
	}
	return mapper.Updated(order.ID, rec), nil
}

// SyncProductsByID pushes exactly the named products.
func (o *Orchestrator) SyncProductsByID(ctx context.Context, ids []string) []mapper.Result {
	return mapper.SyncEach(ctx, o.concurrency, ids, func(ctx context.Context, id string) mapper.Result {
		product, err := findInStore(ctx, o.stores.Products, o.storeID, id)
		if err == nil && product == nil {
			err = fmt.Errorf("%w: product %s", ErrLocalRecordNotFound, id)
		}
		if err != nil {
			return mapper.Failed(id, err)
		}

		res, err := o.SyncProductToERP(ctx, *product)
		if err != nil {
			o.logger.Error("product push failed", "item", id, "error", err)
			return mapper.Failed(id, err)
		}
		return res
	})
}

// SyncOrdersByID pushes exactly the named orders.
func (o *Orchestrator) SyncOrdersByID(ctx context.Context, ids []string) []mapper.Result {
	return mapper.SyncEach(ctx, o.concurrency, ids, func(ctx context.Context, id string) mapper.Result {
		order, err := findInStore(ctx, o.stores.Orders, o.storeID, id)
		if err == nil && order == nil {
			err = fmt.Errorf("%w: order %s", ErrLocalRecordNotFound, id)
		}
		if err != nil {
			return mapper.Failed(id, err)
		}

		res, err := o.SyncOrderToERP(ctx, *order)
		if err != nil {
			o.logger.Error("order push failed", "item", id, "error", err)
			return mapper.Failed(id, err)
		}
		return res
	})
}

// findInStore returns the entity with the given id, or nil when it is missing or owned by another store.
func findInStore[T commerce.StoreScoped](ctx context.Context, entities EntityStore[T], storeID string, id string) (*T, error) {
	entity, err := entities.FindUnique(ctx, id)
	if err != nil || entity == nil {
		return nil, err
	}
	if !(*entity).BelongsTo(storeID) {
		return nil, nil
	}
	return entity, nil
}

// linkedRecord finds the ERP record whose external link is externalID.
func (o *Orchestrator) linkedRecord(ctx context.Context, client ERPClient, doctype string, externalID string) (erp.Record, error) {
	rec, found, err := client.Exists(ctx, doctype, erp.ByExternalID(externalID))
	if err != nil {
		return nil, fmt.Errorf("looking up %s %s: %w", doctype, externalID, err)
	}
	if !found {
		return nil, fmt.Errorf("%s %s reported as duplicate but not linked", doctype, externalID)
	}
	return rec, nil
}
