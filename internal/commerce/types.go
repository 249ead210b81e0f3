// Package commerce defines the store-side entities kept consistent with the ERP.
package commerce

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the storefront visibility of a product.
type ProductStatus string

const (
	// ProductStatusActive is a sellable product.
	ProductStatusActive ProductStatus = "active"

	// ProductStatusInactive is a hidden product.
	ProductStatusInactive ProductStatus = "inactive"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusCancelled  OrderStatus = "Cancelled"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusPacked     OrderStatus = "Packed"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
)

// Address is a customer postal address.
type Address struct {
	City             string    `json:"city"`
	Country          string    `json:"country"`
	CustomerID       string    `json:"customerId"`
	CustomExternalID string    `json:"customExternalId,omitempty"`
	Email            string    `json:"email,omitempty"`
	ID               string    `json:"id"`
	Line1            string    `json:"line1"`
	Line2            string    `json:"line2,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	PostalCode       string    `json:"postalCode"`
	State            string    `json:"state"`
	StoreID          string    `json:"storeId"`
	Type             string    `json:"type,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Category is a product category. Categories nest through ParentID.
type Category struct {
	CustomExternalID string    `json:"customExternalId,omitempty"`
	ID               string    `json:"id"`
	IsGroup          bool      `json:"isGroup"`
	Name             string    `json:"name"`
	ParentID         string    `json:"parentId,omitempty"`
	StoreID          string    `json:"storeId"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Customer is a storefront customer.
type Customer struct {
	CreatedAt        time.Time `json:"createdAt"`
	CustomerType     string    `json:"customerType,omitempty"`
	CustomExternalID string    `json:"customExternalId,omitempty"`
	Email            string    `json:"email"`
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone,omitempty"`
	StoreID          string    `json:"storeId"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Order is a storefront order.
type Order struct {
	CreatedAt        time.Time       `json:"createdAt"`
	CustomerID       string          `json:"customerId"`
	CustomExternalID string          `json:"customExternalId,omitempty"`
	DeliveryDate     time.Time       `json:"deliveryDate,omitzero"`
	ID               string          `json:"id"`
	Items            []OrderItem     `json:"items"`
	Status           OrderStatus     `json:"status"`
	StoreID          string          `json:"storeId"`
	Total            decimal.Decimal `json:"total"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// OrderItem is a single order line.
type OrderItem struct {
	Price     decimal.Decimal `json:"price"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
}

// Product is a storefront product.
type Product struct {
	CategoryID       string          `json:"categoryId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	CustomExternalID string          `json:"customExternalId,omitempty"`
	Description      string          `json:"description"`
	HSNCode          string          `json:"hsnCode,omitempty"`
	ID               string          `json:"id"`
	IsStockItem      bool            `json:"isStockItem"`
	Price            decimal.Decimal `json:"price"`
	SKU              string          `json:"sku,omitempty"`
	Status           ProductStatus   `json:"status"`
	Stock            int             `json:"stock"`
	StoreID          string          `json:"storeId"`
	Title            string          `json:"title"`
	UOM              string          `json:"uom,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// LineTotal returns the extended amount of the line.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputedTotal sums the order lines.
func (o Order) ComputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// StoreScoped is implemented by every entity owned by a single store.
type StoreScoped interface {
	BelongsTo(storeID string) bool
}

// BelongsTo reports whether the address is owned by storeID.
func (a Address) BelongsTo(storeID string) bool { return a.StoreID == storeID }

// BelongsTo reports whether the category is owned by storeID.
func (c Category) BelongsTo(storeID string) bool { return c.StoreID == storeID }

// BelongsTo reports whether the customer is owned by storeID.
func (c Customer) BelongsTo(storeID string) bool { return c.StoreID == storeID }

// BelongsTo reports whether the order is owned by storeID.
func (o Order) BelongsTo(storeID string) bool { return o.StoreID == storeID }

// BelongsTo reports whether the product is owned by storeID.
func (p Product) BelongsTo(storeID string) bool { return p.StoreID == storeID }
