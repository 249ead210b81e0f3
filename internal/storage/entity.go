package storage

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/peteski22/erpbridge/internal/commerce"
)

var (
	// ErrEntityExists indicates a create for an id that is already stored.
	ErrEntityExists = errors.New("entity already exists")

	// ErrEntityNotFound indicates an update for an id that is not stored.
	ErrEntityNotFound = errors.New("entity not found")
)

// fields is an entity in its JSON document form, which both stores persist.
type fields map[string]any

// toFields converts an entity, filter or patch to its JSON document form.
func toFields(v any) (fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding entity: %w", err)
	}
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decoding entity fields: %w", err)
	}
	if f == nil {
		f = fields{}
	}
	return f, nil
}

// fromFields converts a stored document back into an entity.
func fromFields[T any](f fields) (*T, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding entity fields: %w", err)
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decoding entity: %w", err)
	}
	return &v, nil
}

func (f fields) id() string {
	s, _ := f[commerce.FieldID].(string)
	return s
}

func (f fields) matches(filter fields) bool {
	for k, want := range filter {
		if !reflect.DeepEqual(f[k], want) {
			return false
		}
	}
	return true
}

// sortFields orders rows by a field, keeping the existing order for ties.
func sortFields(rows []fields, orderBy commerce.OrderBy) {
	if orderBy.Field == "" {
		return
	}
	slices.SortStableFunc(rows, func(a, b fields) int {
		c := compareValues(a[orderBy.Field], b[orderBy.Field])
		if orderBy.Desc {
			return -c
		}
		return c
	})
}

// compareValues orders document values: numbers numerically, timestamps chronologically,
// numeric strings (decimals) numerically, and other strings lexically. Missing values sort first.
func compareValues(a any, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	}

	x, okA := a.(string)
	y, okB := b.(string)
	if !okA || !okB {
		return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}

	if tx, err := time.Parse(time.RFC3339Nano, x); err == nil {
		if ty, err := time.Parse(time.RFC3339Nano, y); err == nil {
			return tx.Compare(ty)
		}
	}
	if fx, err := strconv.ParseFloat(x, 64); err == nil {
		if fy, err := strconv.ParseFloat(y, 64); err == nil {
			return cmp.Compare(fx, fy)
		}
	}
	return cmp.Compare(x, y)
}

// page applies skip and take.
func page(rows []fields, skip int, take int) []fields {
	if skip >= len(rows) {
		return nil
	}
	rows = rows[max(skip, 0):]
	if take > 0 && take < len(rows) {
		rows = rows[:take]
	}
	return rows
}

// decodeAll converts stored documents back into entities.
func decodeAll[T any](rows []fields) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := fromFields[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// distinctStrings collects the distinct non-empty values of field, sorted.
func distinctStrings(rows []fields, field string) []string {
	var out []string
	for _, row := range rows {
		var s string
		switch v := row[field].(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}
