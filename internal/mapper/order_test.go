package mapper

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/erp/erptest"
)

func seededOrderERP() *erptest.Fake {
	fake := erptest.New()
	fake.Put(erp.DoctypeCustomer, erp.Record{"name": "Asha", "custom_external_id": "u1"})
	fake.Put(erp.DoctypeItem, erp.Record{"name": "SKU-1", "item_code": "SKU-1", "custom_external_id": "p1"})
	fake.Put(erp.DoctypeItem, erp.Record{"name": "SKU-2", "item_code": "SKU-2", "custom_external_id": "p2"})
	return fake
}

func testOrder() commerce.Order {
	return commerce.Order{
		ID:         "o1",
		CustomerID: "u1",
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Items: []commerce.OrderItem{
			{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("120.50")},
			{ProductID: "p2", Quantity: 1, Price: decimal.NewFromInt(300)},
			{ProductID: "p1", Quantity: 1, Price: decimal.RequireFromString("120.50")},
		},
	}
}

func TestOrderMapper_Create(t *testing.T) {
	t.Parallel()

	fake := seededOrderERP()
	m := newTestMappers(t, fake)

	rec, err := m.Orders.Create(context.Background(), testOrder())
	require.NoError(t, err)

	require.Equal(t, "Asha", rec.String("customer"))
	require.Equal(t, "o1", rec.String(erp.FieldExternalID))
	require.Equal(t, "2026-03-01", rec.String("transaction_date"))
	require.Equal(t, "2026-03-08", rec.String("delivery_date"))

	items := rec.Records("items")
	require.Len(t, items, 3)
	require.Equal(t, "SKU-1", items[0].String("item_code"))
	require.Equal(t, "SKU-2", items[1].String("item_code"))
	qty, _ := items[0].Float("qty")
	require.InDelta(t, 2, qty, 0)
	rate, _ := items[0].Float("rate")
	require.InDelta(t, 120.50, rate, 0.0001)
}

func TestOrderMapper_Create_Unresolved(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mutate func(o *commerce.Order)
	}{
		"unknown customer": {
			mutate: func(o *commerce.Order) { o.CustomerID = "u9" },
		},
		"unknown product": {
			mutate: func(o *commerce.Order) { o.Items[1].ProductID = "p9" },
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fake := seededOrderERP()
			m := newTestMappers(t, fake)

			o := testOrder()
			tc.mutate(&o)

			_, err := m.Orders.Create(context.Background(), o)
			require.ErrorIs(t, err, ErrUnresolvedReference)
			require.Zero(t, fake.CountCalls("POST", erp.DoctypeSalesOrder))
		})
	}
}

func TestOrderMapper_SyncAll(t *testing.T) {
	t.Parallel()

	fake := seededOrderERP()
	m := newTestMappers(t, fake)

	bad := testOrder()
	bad.ID = "o2"
	bad.CustomerID = "u9"

	results := m.Orders.SyncAll(context.Background(), []commerce.Order{testOrder(), bad})
	require.Len(t, results, 2)
	require.Equal(t, ActionCreated, results[0].Action)
	require.Equal(t, ActionFailed, results[1].Action)

	results = m.Orders.SyncAll(context.Background(), []commerce.Order{testOrder()})
	require.Equal(t, ActionExists, results[0].Action)
}

func TestOrderMapper_ToSalesOrder_DeliveryDate(t *testing.T) {
	t.Parallel()

	m := newTestMappers(t, erptest.New())
	o := testOrder()
	o.DeliveryDate = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	payload, err := m.Orders.ToSalesOrder(o, "Asha", map[string]string{"p1": "SKU-1", "p2": "SKU-2"})
	require.NoError(t, err)
	require.Equal(t, "2026-03-04", payload.DeliveryDate)
	require.Equal(t, "2026-03-04", payload.Items[0].DeliveryDate)
	require.Equal(t, orderTypeSales, payload.OrderType)
}

func TestOrderStatusFromERP(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want commerce.OrderStatus
	}{
		"packed":      {in: "Packed", want: commerce.OrderStatusPacked},
		"shipped":     {in: "Shipped", want: commerce.OrderStatusShipped},
		"delivered":   {in: "delivered", want: commerce.OrderStatusDelivered},
		"cancelled":   {in: "CANCELLED", want: commerce.OrderStatusCancelled},
		"to deliver":  {in: "To Deliver and Bill", want: commerce.OrderStatusProcessing},
		"draft":       {in: "Draft", want: commerce.OrderStatusProcessing},
		"empty state": {in: "", want: commerce.OrderStatusProcessing},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, OrderStatusFromERP(tc.in))
		})
	}
}
