package storage

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/peteski22/erpbridge/internal/commerce"
)

// MemoryTable is an in-process entity store for one entity type.
// It keeps documents in insertion order and is safe for concurrent use.
type MemoryTable[T any] struct {
	mu    sync.RWMutex
	order []string
	rows  map[string]fields
}

// NewMemoryTable creates a MemoryTable seeded with entities.
func NewMemoryTable[T any](entities ...T) (*MemoryTable[T], error) {
	t := &MemoryTable[T]{rows: make(map[string]fields)}
	for _, e := range entities {
		if _, err := t.Create(context.Background(), e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Create stores an entity, assigning an id when it has none.
func (t *MemoryTable[T]) Create(_ context.Context, entity T) (*T, error) {
	f, err := toFields(entity)
	if err != nil {
		return nil, err
	}
	if f.id() == "" {
		f[commerce.FieldID] = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[f.id()]; ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityExists, f.id())
	}
	t.rows[f.id()] = f
	t.order = append(t.order, f.id())
	return fromFields[T](f)
}

// Distinct returns the distinct non-empty values of field within a store.
func (t *MemoryTable[T]) Distinct(_ context.Context, storeID string, field string) ([]string, error) {
	return distinctStrings(t.scan(storeID, nil), field), nil
}

// Find returns a page of a store's entities.
func (t *MemoryTable[T]) Find(_ context.Context, storeID string, query commerce.Query) ([]T, error) {
	filter, err := toFields(query.Filter)
	if err != nil {
		return nil, err
	}

	rows := t.scan(storeID, filter)
	sortFields(rows, query.OrderBy)
	return decodeAll[T](page(rows, query.Skip, query.Take))
}

// FindFirst returns the first of a store's entities matching filter, or nil.
func (t *MemoryTable[T]) FindFirst(ctx context.Context, storeID string, filter commerce.Filter) (*T, error) {
	found, err := t.Find(ctx, storeID, commerce.Query{Filter: filter, Take: 1})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// FindUnique returns the entity with the given id, or nil.
func (t *MemoryTable[T]) FindUnique(_ context.Context, id string) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	f, ok := t.rows[id]
	if !ok {
		return nil, nil
	}
	return fromFields[T](f)
}

// Update merges patch into the stored entity.
func (t *MemoryTable[T]) Update(_ context.Context, id string, patch commerce.Patch) (*T, error) {
	p, err := toFields(patch)
	if err != nil {
		return nil, err
	}
	delete(p, commerce.FieldID)

	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}

	updated := maps.Clone(f)
	maps.Copy(updated, p)
	if _, err := fromFields[T](updated); err != nil {
		return nil, err
	}

	t.rows[id] = updated
	return fromFields[T](updated)
}

// scan copies the store's documents matching filter, in insertion order.
func (t *MemoryTable[T]) scan(storeID string, filter fields) []fields {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []fields
	for _, id := range t.order {
		f := t.rows[id]
		if f[commerce.FieldStoreID] != storeID || !f.matches(filter) {
			continue
		}
		out = append(out, maps.Clone(f))
	}
	return out
}
