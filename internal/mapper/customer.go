package mapper

import (
	"context"
	"fmt"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
)

const defaultCustomerType = "Individual"

// CustomerMapper pushes customers as ERP Customers.
type CustomerMapper struct {
	base
}

// ToCustomer converts a customer to its ERP representation.
func (m *CustomerMapper) ToCustomer(c commerce.Customer) CustomerPayload {
	return CustomerPayload{
		CustomerGroup:    m.defaults.CustomerGroup,
		CustomerName:     firstNonEmpty(c.Name, c.Email, c.ID),
		CustomerType:     firstNonEmpty(c.CustomerType, defaultCustomerType),
		CustomExternalID: c.ID,
		EmailID:          c.Email,
		MobileNo:         c.Phone,
		Territory:        m.defaults.Territory,
	}
}

// Create creates the ERP Customer for a customer.
func (m *CustomerMapper) Create(ctx context.Context, c commerce.Customer) (erp.Record, error) {
	rec, err := m.client.Create(ctx, erp.DoctypeCustomer, m.ToCustomer(c))
	if err != nil {
		return nil, fmt.Errorf("creating customer %s: %w", c.ID, err)
	}
	return rec, nil
}

// Update writes the customer's contact fields to an existing ERP Customer.
// Group, territory and the external link are left as they are in the ERP.
func (m *CustomerMapper) Update(ctx context.Context, name string, c commerce.Customer) (erp.Record, error) {
	payload := CustomerPayload{
		CustomerName: firstNonEmpty(c.Name, c.Email),
		CustomerType: c.CustomerType,
		EmailID:      c.Email,
		MobileNo:     c.Phone,
	}

	rec, err := m.client.Update(ctx, erp.DoctypeCustomer, name, payload)
	if err != nil {
		return nil, fmt.Errorf("updating customer %s for %s: %w", name, c.ID, err)
	}
	return rec, nil
}

// Upsert pushes one customer unless it is already linked in the ERP.
func (m *CustomerMapper) Upsert(ctx context.Context, c commerce.Customer) Result {
	return m.upsert(ctx, erp.DoctypeCustomer, c.ID, c.ID, func(ctx context.Context) (erp.Record, error) {
		return m.Create(ctx, c)
	})
}

// SyncAll upserts every customer.
func (m *CustomerMapper) SyncAll(ctx context.Context, customers []commerce.Customer) []Result {
	return SyncEach(ctx, m.concurrency, customers, m.Upsert)
}
