package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
)

// ProductMapper pushes products as ERP Items.
type ProductMapper struct {
	base
}

// ToItem converts a product to its ERP Item representation.
// itemGroup falls back to the default item group when empty.
func (m *ProductMapper) ToItem(p commerce.Product, itemGroup string) ItemPayload {
	rate := p.Price.InexactFloat64()
	return ItemPayload{
		CustomExternalID: p.ID,
		Description:      firstNonEmpty(p.Description, p.Title),
		Disabled:         flag(p.Status == commerce.ProductStatusInactive),
		GSTHSNCode:       p.HSNCode,
		IsStockItem:      flag(p.IsStockItem),
		ItemCode:         firstNonEmpty(p.SKU, p.ID),
		ItemGroup:        firstNonEmpty(itemGroup, m.defaults.ItemGroup),
		ItemName:         firstNonEmpty(p.Title, p.SKU, p.ID),
		StandardRate:     &rate,
		StockUOM:         firstNonEmpty(p.UOM, m.defaults.UOM),
	}
}

// Create creates the ERP Item for a product.
func (m *ProductMapper) Create(ctx context.Context, p commerce.Product, itemGroup string) (erp.Record, error) {
	rec, err := m.client.Create(ctx, erp.DoctypeItem, m.ToItem(p, itemGroup))
	if err != nil {
		return nil, fmt.Errorf("creating item for product %s: %w", p.ID, err)
	}
	return rec, nil
}

// Update writes the mapped product fields to an existing ERP Item.
// The item code and external link are never rewritten.
func (m *ProductMapper) Update(ctx context.Context, name string, p commerce.Product, itemGroup string) (erp.Record, error) {
	payload := m.ToItem(p, itemGroup)
	payload.ItemCode = ""
	payload.CustomExternalID = ""
	if itemGroup == "" {
		payload.ItemGroup = ""
	}

	rec, err := m.client.Update(ctx, erp.DoctypeItem, name, payload)
	if err != nil {
		return nil, fmt.Errorf("updating item %s for product %s: %w", name, p.ID, err)
	}
	return rec, nil
}

// SyncAll upserts every product. itemGroups maps category ids to ERP item group names.
func (m *ProductMapper) SyncAll(ctx context.Context, products []commerce.Product, itemGroups map[string]string) []Result {
	return SyncEach(ctx, m.concurrency, products, func(ctx context.Context, p commerce.Product) Result {
		return m.upsert(ctx, erp.DoctypeItem, p.ID, p.ID, func(ctx context.Context) (erp.Record, error) {
			return m.Create(ctx, p, itemGroups[p.CategoryID])
		})
	})
}

// CreateHSNCodeIfNotExists provisions a GST HSN Code, skipping it when the ERP denies access.
func (m *ProductMapper) CreateHSNCodeIfNotExists(ctx context.Context, code string, description string) Result {
	if code == "" {
		return Skipped(code, errors.New("empty HSN code"))
	}
	return m.ensureNamed(ctx, erp.DoctypeHSNCode, code, HSNCodePayload{
		Description: firstNonEmpty(description, "HSN "+code),
		HSNCode:     code,
	})
}

// ProductStatusFromERP derives the storefront status from the ERP disabled flag.
func ProductStatusFromERP(disabled bool) commerce.ProductStatus {
	if disabled {
		return commerce.ProductStatusInactive
	}
	return commerce.ProductStatusActive
}
