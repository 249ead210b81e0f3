// Package erptest provides an in-memory ERP for tests.
package erptest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/peteski22/erpbridge/internal/erp"
)

// Call records one request made against the fake.
type Call struct {
	Doctype string
	Method  string
	Name    string
}

// Fake is an in-memory ERP keyed by doctype and name.
// The hooks, when set, can fail individual requests before they touch the store.
type Fake struct {
	// ActionErr fails Action calls.
	ActionErr func(doctype string, name string, action string) error

	// CreateErr fails Create calls.
	CreateErr func(doctype string, data erp.Record) error

	// ExistsErr fails Exists calls.
	ExistsErr func(doctype string, lookup erp.Lookup) error

	// UpdateErr fails Update calls.
	UpdateErr func(doctype string, name string) error

	mu      sync.Mutex
	calls   []Call
	records map[string]map[string]erp.Record
	seq     int
}

// New returns an empty fake ERP.
func New() *Fake {
	return &Fake{records: make(map[string]map[string]erp.Record)}
}

// namingFields lists the payload field that becomes the record name, per doctype.
var namingFields = map[string]string{
	erp.DoctypeCustomer:  "customer_name",
	erp.DoctypeHSNCode:   "hsn_code",
	erp.DoctypeItem:      "item_code",
	erp.DoctypeItemGroup: "item_group_name",
}

// Create stores a record. Duplicate names and duplicate external links are rejected.
func (f *Fake) Create(_ context.Context, doctype string, data any) (erp.Record, error) {
	rec, err := toRecord(data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Doctype: doctype, Method: http.MethodPost})

	if f.CreateErr != nil {
		if err := f.CreateErr(doctype, rec); err != nil {
			return nil, err
		}
	}

	name := rec.String(namingFields[doctype])
	if name == "" {
		f.seq++
		name = fmt.Sprintf("%s-%04d", doctype, f.seq)
	}

	table := f.table(doctype)
	if _, ok := table[name]; ok {
		return nil, duplicate(name)
	}
	if id := rec.String(erp.FieldExternalID); id != "" {
		for _, existing := range table {
			if existing.String(erp.FieldExternalID) == id {
				return nil, duplicate(erp.FieldExternalID + " " + id)
			}
		}
	}

	rec["name"] = name
	rec["doctype"] = doctype
	table[name] = rec
	f.calls[len(f.calls)-1].Name = name
	return clone(rec), nil
}

// Update merges data into an existing record.
func (f *Fake) Update(_ context.Context, doctype string, name string, data any) (erp.Record, error) {
	patch, err := toRecord(data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Doctype: doctype, Method: http.MethodPut, Name: name})

	if f.UpdateErr != nil {
		if err := f.UpdateErr(doctype, name); err != nil {
			return nil, err
		}
	}

	rec, ok := f.table(doctype)[name]
	if !ok {
		return nil, notFound(doctype, name)
	}
	for k, v := range patch {
		rec[k] = v
	}
	return clone(rec), nil
}

// Get returns a record by name.
func (f *Fake) Get(_ context.Context, doctype string, name string) (erp.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Doctype: doctype, Method: http.MethodGet, Name: name})

	rec, ok := f.table(doctype)[name]
	if !ok {
		return nil, notFound(doctype, name)
	}
	return clone(rec), nil
}

// List returns the records matching every equality filter.
func (f *Fake) List(_ context.Context, doctype string, params erp.ListParams) ([]erp.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Doctype: doctype, Method: http.MethodGet})

	var out []erp.Record
	for _, rec := range f.table(doctype) {
		if matches(rec, params.Filters) {
			out = append(out, clone(rec))
		}
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return out, nil
}

// Exists resolves a lookup by name or by external link.
func (f *Fake) Exists(ctx context.Context, doctype string, lookup erp.Lookup) (erp.Record, bool, error) {
	f.mu.Lock()
	hook := f.ExistsErr
	f.mu.Unlock()
	if hook != nil {
		if err := hook(doctype, lookup); err != nil {
			return nil, false, err
		}
	}

	if lookup.ExternalID() == "" {
		rec, err := f.Get(ctx, doctype, lookup.Name())
		if erp.IsNotFound(err) {
			return nil, false, nil
		}
		return rec, err == nil, err
	}

	recs, err := f.List(ctx, doctype, erp.ListParams{
		Filters: []erp.Filter{{Field: erp.FieldExternalID, Value: lookup.ExternalID()}},
		Limit:   1,
	})
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}

// Action records a workflow action and sets docstatus to 1 for submit.
func (f *Fake) Action(_ context.Context, doc erp.Record, action string) (erp.Record, error) {
	doctype, name := doc.String("doctype"), doc.Name()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Doctype: doctype, Method: action, Name: name})

	if f.ActionErr != nil {
		if err := f.ActionErr(doctype, name, action); err != nil {
			return nil, err
		}
	}

	rec, ok := f.table(doctype)[name]
	if !ok {
		return nil, notFound(doctype, name)
	}
	if action == "submit" {
		rec["docstatus"] = float64(1)
	}
	return clone(rec), nil
}

// Put seeds a record, replacing any with the same name.
func (f *Fake) Put(doctype string, rec erp.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec = clone(rec)
	rec["doctype"] = doctype
	f.table(doctype)[rec.Name()] = rec
}

// Records returns copies of every stored record of doctype.
func (f *Fake) Records(doctype string) []erp.Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]erp.Record, 0, len(f.records[doctype]))
	for _, rec := range f.records[doctype] {
		out = append(out, clone(rec))
	}
	return out
}

// Calls returns the requests made so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CountCalls returns how many requests used method against doctype.
func (f *Fake) CountCalls(method string, doctype string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && c.Doctype == doctype {
			n++
		}
	}
	return n
}

// AuthError returns the error the ERP gives for rejected credentials.
func AuthError() error {
	return &erp.APIError{Code: erp.CodeAuthentication, ExcType: "AuthenticationError", Message: "Authentication Failed", Status: http.StatusUnauthorized}
}

// table must be called with mu held.
func (f *Fake) table(doctype string) map[string]erp.Record {
	t, ok := f.records[doctype]
	if !ok {
		t = make(map[string]erp.Record)
		f.records[doctype] = t
	}
	return t
}

func duplicate(what string) error {
	return &erp.APIError{
		Code:    erp.CodeDuplicate,
		ExcType: "DuplicateEntryError",
		Message: what + " already exists",
		Status:  http.StatusConflict,
	}
}

func notFound(doctype string, name string) error {
	return &erp.APIError{
		Code:    erp.CodeNotFound,
		ExcType: "DoesNotExistError",
		Message: fmt.Sprintf("%s %s not found", doctype, name),
		Status:  http.StatusNotFound,
	}
}

func matches(rec erp.Record, filters []erp.Filter) bool {
	for _, f := range filters {
		if rec.String(f.Field) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

// toRecord round-trips data through JSON so the store holds what the wire would carry.
func toRecord(data any) (erp.Record, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	var rec erp.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if rec == nil {
		rec = erp.Record{}
	}
	return rec, nil
}

func clone(rec erp.Record) erp.Record {
	out := make(erp.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
