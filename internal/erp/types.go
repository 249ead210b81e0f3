// Package erp provides a REST client for the external ERP.
//
// The client knows nothing about commerce entities. Records are addressed by
// doctype and name, and every payload is a plain JSON document.
package erp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Doctypes the bridge reads or writes.
const (
	DoctypeAddress      = "Address"
	DoctypeCustomer     = "Customer"
	DoctypeDeliveryNote = "Delivery Note"
	DoctypeHSNCode      = "GST HSN Code"
	DoctypeItem         = "Item"
	DoctypeItemGroup    = "Item Group"
	DoctypeSalesOrder   = "Sales Order"
)

// FieldExternalID is the ERP field holding the local entity id.
const FieldExternalID = "custom_external_id"

// modifiedLayouts lists the timestamp layouts the ERP uses for audit fields.
var modifiedLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02",
}

// Credentials holds the per-store ERP connection settings.
type Credentials struct {
	// APIKey is the ERP API key.
	APIKey string `json:"apiKey" yaml:"api_key"`

	// APISecret is the ERP API secret.
	APISecret string `json:"apiSecret" yaml:"api_secret"`

	// BaseURL is the ERP site URL, e.g. https://erp.example.com.
	BaseURL string `json:"baseUrl" yaml:"base_url"`

	// DefaultCustomerGroup is applied to customers without a group.
	DefaultCustomerGroup string `json:"defaultCustomerGroup,omitempty" yaml:"default_customer_group"`

	// DefaultTerritory is applied to customers without a territory.
	DefaultTerritory string `json:"defaultTerritory,omitempty" yaml:"default_territory"`

	// StoreName is the display name of the store.
	StoreName string `json:"storeName,omitempty" yaml:"store_name"`

	// TimeZone is the IANA zone the ERP writes naive timestamps in, e.g. Asia/Kolkata. Default is UTC.
	TimeZone string `json:"timeZone,omitempty" yaml:"time_zone"`
}

// Validate checks that all required Credentials fields are set.
func (c *Credentials) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIKey) == "" {
		errs = append(errs, errors.New("API key is required"))
	}
	if strings.TrimSpace(c.APISecret) == "" {
		errs = append(errs, errors.New("API secret is required"))
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			errs = append(errs, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err))
		}
	}
	return errors.Join(errs...)
}

// Location returns the zone of the ERP's naive timestamps. An empty or unknown zone is UTC.
func (c *Credentials) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Filter is a single ERP list filter, encoded as [field, operator, value].
type Filter struct {
	// Field is the ERP field name.
	Field string

	// Operator is the comparison operator, e.g. "=" or "like".
	Operator string

	// Value is the value to compare with.
	Value any
}

// MarshalJSON encodes the filter in the ERP's triple form.
func (f Filter) MarshalJSON() ([]byte, error) {
	op := f.Operator
	if op == "" {
		op = "="
	}
	return json.Marshal([]any{f.Field, op, f.Value})
}

// ListParams controls ERP list queries.
type ListParams struct {
	// Fields projects the returned fields. Empty means the ERP default (name only).
	Fields []string

	// Filters restricts the result set. All filters must match.
	Filters []Filter

	// Limit caps the number of records returned. Zero means the ERP default.
	Limit int

	// OrderBy is an ERP order clause, e.g. "modified desc".
	OrderBy string
}

// Lookup identifies an ERP record either by its name or by its external link.
type Lookup struct {
	externalID string
	name       string
}

// ByName looks a record up by its ERP name.
func ByName(name string) Lookup {
	return Lookup{name: name}
}

// ByExternalID looks a record up by its custom_external_id field.
func ByExternalID(externalID string) Lookup {
	return Lookup{externalID: externalID}
}

// ExternalID returns the external id the lookup matches, or "" for a name lookup.
func (l Lookup) ExternalID() string {
	return l.externalID
}

// Name returns the ERP name the lookup matches, or "" for an external-id lookup.
func (l Lookup) Name() string {
	return l.name
}

// String describes the lookup for logs and errors.
func (l Lookup) String() string {
	if l.externalID != "" {
		return FieldExternalID + "=" + l.externalID
	}
	return "name=" + l.name
}

// Record is a raw ERP document.
type Record map[string]any

// Name returns the ERP record name.
func (r Record) Name() string {
	return r.String("name")
}

// String returns the field as a string, or empty if absent.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the field as a float, and whether it was present and numeric.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Flag returns the field as a boolean. The ERP encodes checkboxes as 0/1.
func (r Record) Flag(key string) bool {
	if b, ok := r[key].(bool); ok {
		return b
	}
	f, ok := r.Float(key)
	return ok && f != 0
}

// Time parses the field as an ERP timestamp. Naive timestamps are read as UTC.
func (r Record) Time(key string) (time.Time, error) {
	return r.TimeIn(key, time.UTC)
}

// TimeIn parses the field as an ERP timestamp, reading naive timestamps in loc.
// Timestamps carrying an offset keep it.
func (r Record) TimeIn(key string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(r.String(key))
	if raw == "" {
		return time.Time{}, fmt.Errorf("field %s is empty", key)
	}
	for _, layout := range modifiedLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing %s timestamp %q", key, raw)
}

// Records returns the field as a list of child records (e.g. item tables).
func (r Record) Records(key string) []Record {
	if recs, ok := r[key].([]Record); ok {
		return recs
	}
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(raw))
	for _, v := range raw {
		switch m := v.(type) {
		case map[string]any:
			out = append(out, Record(m))
		case Record:
			out = append(out, m)
		}
	}
	return out
}
