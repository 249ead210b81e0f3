package mapper

// ItemPayload is the ERP Item document.
type ItemPayload struct {
	// CustomExternalID links the item to the local product.
	CustomExternalID string `json:"custom_external_id,omitempty"`

	// Description is the long description.
	Description string `json:"description,omitempty"`

	// Disabled hides the item (0/1).
	Disabled *int `json:"disabled,omitempty"`

	// GSTHSNCode is the tax classification code.
	GSTHSNCode string `json:"gst_hsn_code,omitempty"`

	// IsStockItem enables stock tracking (0/1).
	IsStockItem *int `json:"is_stock_item,omitempty"`

	// ItemCode is the item name in the ERP. Only sent on create.
	ItemCode string `json:"item_code,omitempty"`

	// ItemGroup is the item group name.
	ItemGroup string `json:"item_group,omitempty"`

	// ItemName is the display name.
	ItemName string `json:"item_name,omitempty"`

	// StandardRate is the default selling price.
	StandardRate *float64 `json:"standard_rate,omitempty"`

	// StockUOM is the stock unit of measure.
	StockUOM string `json:"stock_uom,omitempty"`
}

// ItemGroupPayload is the ERP Item Group document.
type ItemGroupPayload struct {
	// CustomExternalID links the group to the local category.
	CustomExternalID string `json:"custom_external_id,omitempty"`

	// IsGroup allows child groups (0/1).
	IsGroup *int `json:"is_group,omitempty"`

	// ItemGroupName is the group name, also its ERP name.
	ItemGroupName string `json:"item_group_name,omitempty"`

	// ParentItemGroup is the parent group name.
	ParentItemGroup string `json:"parent_item_group,omitempty"`
}

// HSNCodePayload is the ERP GST HSN Code document.
type HSNCodePayload struct {
	// Description describes the classification.
	Description string `json:"description,omitempty"`

	// HSNCode is the code, also its ERP name.
	HSNCode string `json:"hsn_code"`
}

// CustomerPayload is the ERP Customer document.
type CustomerPayload struct {
	// CustomerGroup is the customer group name.
	CustomerGroup string `json:"customer_group,omitempty"`

	// CustomerName is the display name.
	CustomerName string `json:"customer_name,omitempty"`

	// CustomerType is Individual or Company.
	CustomerType string `json:"customer_type,omitempty"`

	// CustomExternalID links the customer to the local customer.
	CustomExternalID string `json:"custom_external_id,omitempty"`

	// EmailID is the primary email.
	EmailID string `json:"email_id,omitempty"`

	// MobileNo is the primary phone.
	MobileNo string `json:"mobile_no,omitempty"`

	// Territory is the sales territory.
	Territory string `json:"territory,omitempty"`
}

// AddressLink ties an address to another ERP record.
type AddressLink struct {
	// LinkDoctype is the linked doctype, e.g. Customer.
	LinkDoctype string `json:"link_doctype"`

	// LinkName is the linked record name.
	LinkName string `json:"link_name"`
}

// AddressPayload is the ERP Address document.
type AddressPayload struct {
	AddressLine1     string        `json:"address_line1,omitempty"`
	AddressLine2     string        `json:"address_line2,omitempty"`
	AddressTitle     string        `json:"address_title,omitempty"`
	AddressType      string        `json:"address_type,omitempty"`
	City             string        `json:"city,omitempty"`
	Country          string        `json:"country,omitempty"`
	CustomExternalID string        `json:"custom_external_id,omitempty"`
	EmailID          string        `json:"email_id,omitempty"`
	Links            []AddressLink `json:"links,omitempty"`
	Phone            string        `json:"phone,omitempty"`
	Pincode          string        `json:"pincode,omitempty"`
	State            string        `json:"state,omitempty"`
}

// SalesOrderItem is a line of an ERP Sales Order.
type SalesOrderItem struct {
	DeliveryDate string  `json:"delivery_date,omitempty"`
	ItemCode     string  `json:"item_code"`
	Qty          int     `json:"qty"`
	Rate         float64 `json:"rate"`
}

// SalesOrderPayload is the ERP Sales Order document.
type SalesOrderPayload struct {
	// Customer is the ERP customer name.
	Customer string `json:"customer,omitempty"`

	// CustomExternalID links the order to the local order.
	CustomExternalID string `json:"custom_external_id,omitempty"`

	// DeliveryDate is the expected delivery date (YYYY-MM-DD).
	DeliveryDate string `json:"delivery_date,omitempty"`

	// Items are the order lines.
	Items []SalesOrderItem `json:"items,omitempty"`

	// OrderType is Sales for storefront orders.
	OrderType string `json:"order_type,omitempty"`

	// PONo carries the storefront order id for operators.
	PONo string `json:"po_no,omitempty"`

	// TransactionDate is the order date (YYYY-MM-DD).
	TransactionDate string `json:"transaction_date,omitempty"`
}
