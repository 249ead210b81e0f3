package sync

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/mapper"
)

const (
	fieldActualQty         = "actual_qty"
	fieldAgainstSalesOrder = "against_sales_order"
	fieldDescription       = "description"
	fieldDisabled          = "disabled"
	fieldHSNCode           = "gst_hsn_code"
	fieldItemName          = "item_name"
	fieldModified          = "modified"
	fieldStandardRate      = "standard_rate"
	fieldStatus            = "status"
	fieldWorkflowState     = "workflow_state"
)

// HandleWebhook applies an inbound ERP event to the local store.
// Only Item, Sales Order and Delivery Note events are handled; the change is not pushed back.
func (o *Orchestrator) HandleWebhook(ctx context.Context, payload WebhookPayload) (*WebhookResult, error) {
	var handle func(context.Context, ERPClient, WebhookPayload) (*WebhookResult, error)
	switch payload.Doctype {
	case erp.DoctypeItem:
		handle = o.handleProductUpdateFromERP
	case erp.DoctypeSalesOrder:
		handle = o.handleOrderUpdateFromERP
	case erp.DoctypeDeliveryNote:
		handle = o.handleDeliveryUpdateFromERP
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDoctype, payload.Doctype)
	}

	client, _, err := o.connection(ctx)
	if err != nil {
		return nil, err
	}

	o.logger.Info("handling ERP webhook", "doctype", payload.Doctype, "name", payload.Name, "action", payload.Action)
	return handle(ctx, client, payload)
}

// handleProductUpdateFromERP copies an ERP Item onto its local product unless the local copy is newer.
func (o *Orchestrator) handleProductUpdateFromERP(
	ctx context.Context,
	client ERPClient,
	payload WebhookPayload,
) (*WebhookResult, error) {
	item, err := client.Get(ctx, erp.DoctypeItem, payload.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching item %s: %w", payload.Name, err)
	}

	product, err := o.resolveProduct(ctx, item)
	if err != nil {
		return nil, err
	}

	modified, err := item.TimeIn(fieldModified, o.erpLocation())
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", payload.Name, err)
	}
	if product.UpdatedAt.After(modified) {
		o.logger.Warn("rejecting ERP item update, local product is newer",
			"product_id", product.ID,
			"local_updated_at", product.UpdatedAt,
			"erp_modified", modified)
		return nil, &ConflictError{EntityID: product.ID, LocalUpdatedAt: product.UpdatedAt, RemoteModified: modified}
	}

	patch := commerce.Patch{
		commerce.FieldStatus:    mapper.ProductStatusFromERP(item.Flag(fieldDisabled)),
		commerce.FieldUpdatedAt: modified,
	}
	if title := item.String(fieldItemName); title != "" {
		patch[commerce.FieldTitle] = title
	}
	if _, ok := item[fieldDescription]; ok {
		patch[commerce.FieldDescription] = item.String(fieldDescription)
	}
	if rate, ok := item.Float(fieldStandardRate); ok {
		patch[commerce.FieldPrice] = decimal.NewFromFloat(rate)
	}
	if stock, ok := stockLevel(payload.Data, item); ok {
		patch[commerce.FieldStock] = stock
	}

	updated, err := o.stores.Products.Update(ctx, product.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("updating product %s: %w", product.ID, err)
	}

	o.logger.Info("product updated from ERP", "product_id", product.ID, "erp_name", payload.Name)
	return &WebhookResult{Doctype: payload.Doctype, Name: payload.Name, Product: updated}, nil
}

// resolveProduct finds the local product for an ERP Item by its external link,
// falling back to the HSN code when the link is absent and exactly one product carries the code.
func (o *Orchestrator) resolveProduct(ctx context.Context, item erp.Record) (*commerce.Product, error) {
	if externalID := item.String(erp.FieldExternalID); externalID != "" {
		product, err := o.stores.Products.FindFirst(ctx, o.storeID, commerce.Filter{commerce.FieldID: externalID})
		if err != nil {
			return nil, fmt.Errorf("fetching product %s: %w", externalID, err)
		}
		if product != nil {
			return product, nil
		}
	}

	code := item.String(fieldHSNCode)
	if code == "" {
		return nil, fmt.Errorf("%w: item %s", ErrLocalRecordNotFound, item.Name())
	}

	matches, err := o.stores.Products.Find(ctx, o.storeID, commerce.Query{
		Filter: commerce.Filter{commerce.FieldHSNCode: code},
		Take:   2,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching products with HSN code %s: %w", code, err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: item %s", ErrLocalRecordNotFound, item.Name())
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: HSN code %s matches several products", ErrAmbiguousMatch, code)
	}
}

// stockLevel reads the stock quantity from the event data, then from the item.
func stockLevel(data map[string]any, item erp.Record) (int, bool) {
	if qty, ok := erp.Record(data).Float(commerce.FieldStock); ok {
		return int(qty), true
	}
	if qty, ok := erp.Record(data).Float(fieldActualQty); ok {
		return int(qty), true
	}
	if qty, ok := item.Float(fieldActualQty); ok {
		return int(qty), true
	}
	return 0, false
}

// handleOrderUpdateFromERP copies a Sales Order's workflow state onto its local order.
func (o *Orchestrator) handleOrderUpdateFromERP(
	ctx context.Context,
	client ERPClient,
	payload WebhookPayload,
) (*WebhookResult, error) {
	salesOrder, err := client.Get(ctx, erp.DoctypeSalesOrder, payload.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching sales order %s: %w", payload.Name, err)
	}

	externalID := salesOrder.String(erp.FieldExternalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: sales order %s", ErrMissingExternalID, payload.Name)
	}

	state := salesOrder.String(fieldWorkflowState)
	if state == "" {
		state = salesOrder.String(fieldStatus)
	}

	return o.updateOrderStatus(ctx, payload, externalID, mapper.OrderStatusFromERP(state))
}

// handleDeliveryUpdateFromERP marks the order behind a Delivery Note as delivered.
// Delivery notes are authoritative, so no conflict check applies.
func (o *Orchestrator) handleDeliveryUpdateFromERP(
	ctx context.Context,
	client ERPClient,
	payload WebhookPayload,
) (*WebhookResult, error) {
	note, err := client.Get(ctx, erp.DoctypeDeliveryNote, payload.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching delivery note %s: %w", payload.Name, err)
	}

	externalID, err := o.deliveryExternalID(ctx, client, note)
	if err != nil {
		return nil, err
	}
	if externalID == "" {
		return nil, fmt.Errorf("%w: delivery note %s", ErrMissingExternalID, payload.Name)
	}

	return o.updateOrderStatus(ctx, payload, externalID, commerce.OrderStatusDelivered)
}

// deliveryExternalID reads the note's own link, then the link of the Sales Order it delivers.
func (o *Orchestrator) deliveryExternalID(ctx context.Context, client ERPClient, note erp.Record) (string, error) {
	if id := note.String(erp.FieldExternalID); id != "" {
		return id, nil
	}

	for _, line := range note.Records("items") {
		soName := line.String(fieldAgainstSalesOrder)
		if soName == "" {
			continue
		}
		salesOrder, err := client.Get(ctx, erp.DoctypeSalesOrder, soName)
		if err != nil {
			return "", fmt.Errorf("fetching sales order %s: %w", soName, err)
		}
		return salesOrder.String(erp.FieldExternalID), nil
	}
	return "", nil
}

func (o *Orchestrator) updateOrderStatus(
	ctx context.Context,
	payload WebhookPayload,
	orderID string,
	status commerce.OrderStatus,
) (*WebhookResult, error) {
	order, err := o.stores.Orders.FindFirst(ctx, o.storeID, commerce.Filter{commerce.FieldID: orderID})
	if err != nil {
		return nil, fmt.Errorf("fetching order %s: %w", orderID, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", ErrLocalRecordNotFound, orderID)
	}

	updated, err := o.stores.Orders.Update(ctx, order.ID, commerce.Patch{
		commerce.FieldStatus:    status,
		commerce.FieldUpdatedAt: o.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("updating order %s: %w", order.ID, err)
	}

	o.logger.Info("order updated from ERP", "order_id", order.ID, "status", status, "doctype", payload.Doctype)
	return &WebhookResult{Doctype: payload.Doctype, Name: payload.Name, Order: updated}, nil
}
