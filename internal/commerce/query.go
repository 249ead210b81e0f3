package commerce

// Field names used in queries and patches. They match the JSON names of the entities.
const (
	FieldCreatedAt        = "createdAt"
	FieldCustomExternalID = "customExternalId"
	FieldDescription      = "description"
	FieldHSNCode          = "hsnCode"
	FieldID               = "id"
	FieldPrice            = "price"
	FieldStatus           = "status"
	FieldStock            = "stock"
	FieldStoreID          = "storeId"
	FieldTitle            = "title"
	FieldUpdatedAt        = "updatedAt"
)

// Filter matches entities whose fields equal the given values.
type Filter map[string]any

// OrderBy sorts query results by a single field.
type OrderBy struct {
	// Desc sorts in descending order.
	Desc bool

	// Field is the field to sort on.
	Field string
}

// Patch is a partial update keyed by field name.
type Patch map[string]any

// Query selects a page of entities within a store.
type Query struct {
	// Filter restricts the result set.
	Filter Filter

	// OrderBy sorts the result set before paging.
	OrderBy OrderBy

	// Skip drops the first n results.
	Skip int

	// Take limits the number of results. Zero means no limit.
	Take int
}

// Newest returns a query for the most recently changed entities.
func Newest(take int) Query {
	return Query{
		OrderBy: OrderBy{Field: FieldUpdatedAt, Desc: true},
		Take:    take,
	}
}
