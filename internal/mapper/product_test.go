package mapper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/erp/erptest"
)

func testProducts() []commerce.Product {
	return []commerce.Product{
		{ID: "p1", SKU: "SKU-1", Title: "Tea", Price: decimal.RequireFromString("120.50"), HSNCode: "0902", Status: commerce.ProductStatusActive},
		{ID: "p2", SKU: "SKU-2", Title: "Coffee", Price: decimal.NewFromInt(300), CategoryID: "c1", Status: commerce.ProductStatusInactive},
		{ID: "p3", Title: "Sugar", Price: decimal.NewFromInt(40), IsStockItem: true, UOM: "Kg"},
	}
}

func TestProductMapper_ToItem(t *testing.T) {
	t.Parallel()

	m := newTestMappers(t, erptest.New())
	products := testProducts()

	item := m.Products.ToItem(products[0], "")
	require.Equal(t, "SKU-1", item.ItemCode)
	require.Equal(t, "Tea", item.ItemName)
	require.Equal(t, "Tea", item.Description)
	require.Equal(t, "p1", item.CustomExternalID)
	require.Equal(t, defaultItemGroup, item.ItemGroup)
	require.Equal(t, defaultUOM, item.StockUOM)
	require.Equal(t, "0902", item.GSTHSNCode)
	require.Equal(t, 0, *item.Disabled)
	require.Equal(t, 0, *item.IsStockItem)
	require.InDelta(t, 120.50, *item.StandardRate, 0.0001)

	item = m.Products.ToItem(products[1], "Beverages")
	require.Equal(t, "Beverages", item.ItemGroup)
	require.Equal(t, 1, *item.Disabled)

	item = m.Products.ToItem(products[2], "")
	require.Equal(t, "p3", item.ItemCode)
	require.Equal(t, "Kg", item.StockUOM)
	require.Equal(t, 1, *item.IsStockItem)
}

func TestProductMapper_SyncAll_Idempotent(t *testing.T) {
	t.Parallel()

	fake := erptest.New()
	m := newTestMappers(t, fake)
	products := testProducts()
	groups := map[string]string{"c1": "Beverages"}

	first := m.Products.SyncAll(context.Background(), products, groups)
	require.Len(t, first, 3)
	require.Equal(t, 3, Count(first, ActionCreated))

	second := m.Products.SyncAll(context.Background(), products, groups)
	require.Len(t, second, 3)
	require.Equal(t, 3, Count(second, ActionExists))

	require.Len(t, fake.Records(erp.DoctypeItem), 3)
	require.Equal(t, 3, fake.CountCalls("POST", erp.DoctypeItem))

	for _, rec := range fake.Records(erp.DoctypeItem) {
		if rec.Name() == "SKU-2" {
			require.Equal(t, "Beverages", rec.String("item_group"))
		}
	}
}

func TestProductMapper_SyncAll_PartialFailure(t *testing.T) {
	t.Parallel()

	fake := erptest.New()
	fake.CreateErr = func(_ string, data erp.Record) error {
		if data.String(erp.FieldExternalID) == "p2" {
			return &erp.APIError{Code: erp.CodeValidation, Message: "Item Group Beverages not found", Status: 417}
		}
		return nil
	}
	m := newTestMappers(t, fake)

	results := m.Products.SyncAll(context.Background(), testProducts(), nil)

	require.Len(t, results, 3)
	require.Equal(t, 1, Count(results, ActionFailed))
	require.Equal(t, 2, Count(results, ActionCreated))
	require.Equal(t, ActionFailed, results[1].Action)
	require.Equal(t, "p2", results[1].Item)
	require.Contains(t, results[1].Error, "Item Group Beverages not found")
}

func TestProductMapper_SyncAll_LookupFailure(t *testing.T) {
	t.Parallel()

	fake := erptest.New()
	fake.ExistsErr = func(string, erp.Lookup) error {
		return &erp.APIError{Code: erp.CodeTransport, Message: "connection refused"}
	}
	m := newTestMappers(t, fake)

	results := m.Products.SyncAll(context.Background(), testProducts(), nil)

	require.Equal(t, 3, Count(results, ActionFailed))
	require.Zero(t, fake.CountCalls("POST", erp.DoctypeItem))
}

func TestProductMapper_Update(t *testing.T) {
	t.Parallel()

	fake := erptest.New()
	fake.Put(erp.DoctypeItem, erp.Record{"name": "SKU-1", "item_code": "SKU-1", "custom_external_id": "p1", "brand": "Acme"})
	m := newTestMappers(t, fake)

	p := testProducts()[0]
	p.Title = "Green Tea"

	rec, err := m.Products.Update(context.Background(), "SKU-1", p, "")
	require.NoError(t, err)
	require.Equal(t, "Green Tea", rec.String("item_name"))
	require.Equal(t, "Acme", rec.String("brand"))
	require.Equal(t, "SKU-1", rec.String("item_code"))
	require.Empty(t, rec.String("item_group"))
}

func TestProductStatusFromERP(t *testing.T) {
	t.Parallel()

	require.Equal(t, commerce.ProductStatusInactive, ProductStatusFromERP(true))
	require.Equal(t, commerce.ProductStatusActive, ProductStatusFromERP(false))
}
