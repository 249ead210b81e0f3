package mapper

import (
	"context"
	"fmt"
	"strings"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
)

// ERP address types.
const (
	AddressTypeBilling  = "Billing"
	AddressTypeOther    = "Other"
	AddressTypeShipping = "Shipping"
)

// NormalizeAddressType maps a free-form address type to the ERP's enumeration.
func NormalizeAddressType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "billing":
		return AddressTypeBilling
	case "shipping":
		return AddressTypeShipping
	default:
		return AddressTypeOther
	}
}

// AddressMapper pushes addresses as ERP Addresses linked to their customer.
type AddressMapper struct {
	base
}

// ToAddress converts an address to its ERP representation.
// customerName is the ERP name of the owning customer; no link is written when it is empty.
func (m *AddressMapper) ToAddress(a commerce.Address, customerName string) AddressPayload {
	payload := AddressPayload{
		AddressLine1:     a.Line1,
		AddressLine2:     a.Line2,
		AddressTitle:     firstNonEmpty(customerName, a.CustomerID, a.ID),
		AddressType:      NormalizeAddressType(a.Type),
		City:             a.City,
		Country:          firstNonEmpty(a.Country, m.defaults.Country),
		CustomExternalID: a.ID,
		EmailID:          a.Email,
		Phone:            a.Phone,
		Pincode:          a.PostalCode,
		State:            a.State,
	}
	if customerName != "" {
		payload.Links = []AddressLink{{LinkDoctype: erp.DoctypeCustomer, LinkName: customerName}}
	}
	return payload
}

// Create creates the ERP Address, linking it to the customer when the customer is already in the ERP.
func (m *AddressMapper) Create(ctx context.Context, a commerce.Address) (erp.Record, error) {
	rec, err := m.client.Create(ctx, erp.DoctypeAddress, m.ToAddress(a, m.customerName(ctx, a)))
	if err != nil {
		return nil, fmt.Errorf("creating address %s: %w", a.ID, err)
	}
	return rec, nil
}

// Update writes the mapped address fields to an existing ERP Address. Links are left untouched.
func (m *AddressMapper) Update(ctx context.Context, name string, a commerce.Address) (erp.Record, error) {
	payload := m.ToAddress(a, "")
	payload.AddressTitle = ""
	payload.CustomExternalID = ""

	rec, err := m.client.Update(ctx, erp.DoctypeAddress, name, payload)
	if err != nil {
		return nil, fmt.Errorf("updating address %s for %s: %w", name, a.ID, err)
	}
	return rec, nil
}

// SyncAll upserts every address.
func (m *AddressMapper) SyncAll(ctx context.Context, addresses []commerce.Address) []Result {
	return SyncEach(ctx, m.concurrency, addresses, func(ctx context.Context, a commerce.Address) Result {
		return m.upsert(ctx, erp.DoctypeAddress, a.ID, a.ID, func(ctx context.Context) (erp.Record, error) {
			return m.Create(ctx, a)
		})
	})
}

// customerName resolves the ERP name of the address owner, or "" when it cannot be resolved.
func (m *AddressMapper) customerName(ctx context.Context, a commerce.Address) string {
	if a.CustomerID == "" {
		return ""
	}

	rec, found, err := m.client.Exists(ctx, erp.DoctypeCustomer, erp.ByExternalID(a.CustomerID))
	if err != nil || !found {
		m.logger.Warn("address customer not in ERP, creating unlinked",
			"item", a.ID,
			"customer_id", a.CustomerID,
			"error", err,
		)
		return ""
	}
	return rec.Name()
}
