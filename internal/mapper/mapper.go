// Package mapper translates store entities into ERP documents and pushes them.
//
// Every mapper offers Create, Update and SyncAll. SyncAll is an idempotent upsert:
// each entity is looked up by its external link first and only created when absent.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/peteski22/erpbridge/internal/erp"
)

const (
	defaultConcurrency   = 4
	defaultCountry       = "India"
	defaultCustomerGroup = "All Customer Groups"
	defaultItemGroup     = "All Item Groups"
	defaultTerritory     = "All Territories"
	defaultUOM           = "Nos"
)

// Client defines the ERP operations required by the mappers.
type Client interface {
	// Create inserts a new record of the given doctype.
	Create(ctx context.Context, doctype string, data any) (erp.Record, error)

	// Exists resolves a lookup, reporting a missing record as (nil, false, nil).
	Exists(ctx context.Context, doctype string, lookup erp.Lookup) (erp.Record, bool, error)

	// Update writes a partial payload to an existing record.
	Update(ctx context.Context, doctype string, name string, data any) (erp.Record, error)
}

// Defaults holds fallbacks for optional ERP fields.
type Defaults struct {
	// Country is used for addresses without a country.
	Country string

	// CustomerGroup is assigned to every new customer.
	CustomerGroup string

	// ItemGroup is used for products without a category and as the root item group.
	ItemGroup string

	// Territory is assigned to every new customer.
	Territory string

	// UOM is the stock unit for products without one.
	UOM string
}

// withFallbacks fills empty defaults.
func (d Defaults) withFallbacks() Defaults {
	if d.Country == "" {
		d.Country = defaultCountry
	}
	if d.CustomerGroup == "" {
		d.CustomerGroup = defaultCustomerGroup
	}
	if d.ItemGroup == "" {
		d.ItemGroup = defaultItemGroup
	}
	if d.Territory == "" {
		d.Territory = defaultTerritory
	}
	if d.UOM == "" {
		d.UOM = defaultUOM
	}
	return d
}

// Config holds the configuration for creating the mappers.
type Config struct {
	// Client is the ERP client.
	Client Client

	// Concurrency caps in-flight pushes in SyncAll. Default is 4.
	Concurrency int

	// Defaults holds fallbacks for optional ERP fields.
	Defaults Defaults

	// Logger is the structured logger.
	Logger *slog.Logger
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Client == nil {
		errs = append(errs, errors.New("ERP client is required"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency cannot be negative"))
	}
	return errors.Join(errs...)
}

// Mappers groups the per-entity mappers sharing one ERP client.
type Mappers struct {
	Addresses  *AddressMapper
	Categories *CategoryMapper
	Customers  *CustomerMapper
	Orders     *OrderMapper
	Products   *ProductMapper
}

// base carries the dependencies shared by every mapper.
type base struct {
	client      Client
	concurrency int
	defaults    Defaults
	logger      *slog.Logger
}

// New creates the entity mappers.
func New(cfg Config) (*Mappers, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = defaultConcurrency
	}

	b := base{
		client:      cfg.Client,
		concurrency: concurrency,
		defaults:    cfg.Defaults.withFallbacks(),
		logger:      logger,
	}

	return &Mappers{
		Addresses:  &AddressMapper{base: b},
		Categories: &CategoryMapper{base: b},
		Customers:  &CustomerMapper{base: b},
		Orders:     &OrderMapper{base: b},
		Products:   &ProductMapper{base: b},
	}, nil
}

// upsert creates the record for externalID unless one is already linked in the ERP.
// A failed lookup is reported as a failure; creating blind could duplicate the record.
func (b *base) upsert(
	ctx context.Context,
	doctype string,
	item string,
	externalID string,
	create func(ctx context.Context) (erp.Record, error),
) Result {
	rec, found, err := b.client.Exists(ctx, doctype, erp.ByExternalID(externalID))
	if err != nil {
		b.logger.Error("ERP lookup failed", "doctype", doctype, "item", item, "error", err)
		return Failed(item, fmt.Errorf("looking up %s %s: %w", doctype, externalID, err))
	}

	if found {
		b.logger.Debug("already synced", "doctype", doctype, "item", item, "erp_name", rec.Name())
		return Exists(item, rec)
	}

	rec, err = create(ctx)
	if err != nil {
		b.logger.Error("ERP create failed", "doctype", doctype, "item", item, "error", err)
		return Failed(item, err)
	}

	b.logger.Info("created in ERP", "doctype", doctype, "item", item, "erp_name", rec.Name())
	return Created(item, rec)
}

// ensureNamed creates a record addressed by name unless it already exists.
// The lookup and the create are best-effort: authentication failures are reported
// as skipped, and a lookup failure falls through to the create.
func (b *base) ensureNamed(ctx context.Context, doctype string, name string, payload any) Result {
	rec, found, err := b.client.Exists(ctx, doctype, erp.ByName(name))
	switch {
	case erp.IsAuthentication(err):
		b.logger.Warn("skipping provisioning, ERP denied access", "doctype", doctype, "item", name, "error", err)
		return Skipped(name, err)
	case err != nil:
		b.logger.Warn("ERP lookup failed, attempting create", "doctype", doctype, "item", name, "error", err)
	case found:
		return Exists(name, rec)
	}

	rec, err = b.client.Create(ctx, doctype, payload)
	switch {
	case err == nil:
		b.logger.Info("created in ERP", "doctype", doctype, "item", name)
		return Created(name, rec)
	case erp.IsAuthentication(err):
		b.logger.Warn("skipping provisioning, ERP denied access", "doctype", doctype, "item", name, "error", err)
		return Skipped(name, err)
	case erp.IsDuplicate(err):
		return Exists(name, nil)
	default:
		b.logger.Error("ERP create failed", "doctype", doctype, "item", name, "error", err)
		return Failed(name, err)
	}
}

// flag encodes a boolean as the ERP's 0/1 checkbox value.
func flag(b bool) *int {
	v := 0
	if b {
		v = 1
	}
	return &v
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
