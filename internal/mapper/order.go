package mapper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
)

const (
	dateLayout          = "2006-01-02"
	defaultDeliveryLead = 7 * 24 * time.Hour
	orderTypeSales      = "Sales"
)

// ErrUnresolvedReference indicates a linked record the order depends on is not in the ERP.
var ErrUnresolvedReference = errors.New("referenced record not found in ERP")

// OrderMapper pushes orders as ERP Sales Orders.
type OrderMapper struct {
	base
}

// ToSalesOrder converts an order to its ERP representation.
// itemCodes maps product ids to ERP item codes; every line must resolve.
func (m *OrderMapper) ToSalesOrder(o commerce.Order, customer string, itemCodes map[string]string) (SalesOrderPayload, error) {
	delivery := o.DeliveryDate
	if delivery.IsZero() {
		delivery = o.CreatedAt.Add(defaultDeliveryLead)
	}

	items := make([]SalesOrderItem, 0, len(o.Items))
	for _, line := range o.Items {
		code, ok := itemCodes[line.ProductID]
		if !ok || code == "" {
			return SalesOrderPayload{}, fmt.Errorf("%w: item for product %s", ErrUnresolvedReference, line.ProductID)
		}
		items = append(items, SalesOrderItem{
			DeliveryDate: delivery.Format(dateLayout),
			ItemCode:     code,
			Qty:          line.Quantity,
			Rate:         line.Price.InexactFloat64(),
		})
	}

	return SalesOrderPayload{
		Customer:         customer,
		CustomExternalID: o.ID,
		DeliveryDate:     delivery.Format(dateLayout),
		Items:            items,
		OrderType:        orderTypeSales,
		PONo:             o.ID,
		TransactionDate:  o.CreatedAt.Format(dateLayout),
	}, nil
}

// Create resolves the order's customer and items in the ERP and creates the Sales Order.
func (m *OrderMapper) Create(ctx context.Context, o commerce.Order) (erp.Record, error) {
	customer, itemCodes, err := m.resolve(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("resolving order %s: %w", o.ID, err)
	}

	payload, err := m.ToSalesOrder(o, customer, itemCodes)
	if err != nil {
		return nil, fmt.Errorf("mapping order %s: %w", o.ID, err)
	}

	rec, err := m.client.Create(ctx, erp.DoctypeSalesOrder, payload)
	if err != nil {
		return nil, fmt.Errorf("creating sales order for order %s: %w", o.ID, err)
	}
	return rec, nil
}

// Update writes the order's delivery date and lines to an existing Sales Order.
func (m *OrderMapper) Update(ctx context.Context, name string, o commerce.Order) (erp.Record, error) {
	_, itemCodes, err := m.resolve(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("resolving order %s: %w", o.ID, err)
	}

	payload, err := m.ToSalesOrder(o, "", itemCodes)
	if err != nil {
		return nil, fmt.Errorf("mapping order %s: %w", o.ID, err)
	}
	payload.CustomExternalID = ""
	payload.OrderType = ""
	payload.TransactionDate = ""

	rec, err := m.client.Update(ctx, erp.DoctypeSalesOrder, name, payload)
	if err != nil {
		return nil, fmt.Errorf("updating sales order %s for order %s: %w", name, o.ID, err)
	}
	return rec, nil
}

// SyncAll upserts every order.
func (m *OrderMapper) SyncAll(ctx context.Context, orders []commerce.Order) []Result {
	return SyncEach(ctx, m.concurrency, orders, func(ctx context.Context, o commerce.Order) Result {
		return m.upsert(ctx, erp.DoctypeSalesOrder, o.ID, o.ID, func(ctx context.Context) (erp.Record, error) {
			return m.Create(ctx, o)
		})
	})
}

// resolve looks up the ERP customer name and the item code of every distinct product on the order.
func (m *OrderMapper) resolve(ctx context.Context, o commerce.Order) (string, map[string]string, error) {
	customer, err := m.lookupName(ctx, erp.DoctypeCustomer, o.CustomerID, "")
	if err != nil {
		return "", nil, err
	}

	codes := make(map[string]string, len(o.Items))
	for _, line := range o.Items {
		if _, ok := codes[line.ProductID]; ok {
			continue
		}
		code, err := m.lookupName(ctx, erp.DoctypeItem, line.ProductID, "item_code")
		if err != nil {
			return "", nil, err
		}
		codes[line.ProductID] = code
	}

	return customer, codes, nil
}

// lookupName finds the record linked to externalID and returns field, or its name when field is empty.
func (m *OrderMapper) lookupName(ctx context.Context, doctype string, externalID string, field string) (string, error) {
	rec, found, err := m.client.Exists(ctx, doctype, erp.ByExternalID(externalID))
	if err != nil {
		return "", fmt.Errorf("looking up %s %s: %w", doctype, externalID, err)
	}
	if !found {
		return "", fmt.Errorf("%w: %s %s", ErrUnresolvedReference, doctype, externalID)
	}
	if v := rec.String(field); field != "" && v != "" {
		return v, nil
	}
	return rec.Name(), nil
}

// orderStatuses maps ERP workflow states to local order statuses.
var orderStatuses = map[string]commerce.OrderStatus{
	"cancelled": commerce.OrderStatusCancelled,
	"delivered": commerce.OrderStatusDelivered,
	"packed":    commerce.OrderStatusPacked,
	"shipped":   commerce.OrderStatusShipped,
}

// OrderStatusFromERP maps an ERP workflow state or document status to a local order status.
// Anything unrecognized is Processing.
func OrderStatusFromERP(state string) commerce.OrderStatus {
	if status, ok := orderStatuses[strings.ToLower(strings.TrimSpace(state))]; ok {
		return status
	}
	return commerce.OrderStatusProcessing
}
