package mapper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/erp/erptest"
)

func TestCategoryLevels(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		categories []commerce.Category
		want       [][]int
	}{
		"flat": {
			categories: []commerce.Category{{ID: "a"}, {ID: "b"}},
			want:       [][]int{{0, 1}},
		},
		"child before parent": {
			categories: []commerce.Category{{ID: "leaf", ParentID: "mid"}, {ID: "mid", ParentID: "root"}, {ID: "root"}},
			want:       [][]int{{2}, {1}, {0}},
		},
		"parent outside batch": {
			categories: []commerce.Category{{ID: "a", ParentID: "missing"}},
			want:       [][]int{{0}},
		},
		"cycle": {
			categories: []commerce.Category{{ID: "a", ParentID: "b"}, {ID: "b", ParentID: "a"}},
			want:       [][]int{nil, {0, 1}},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, categoryLevels(tc.categories))
		})
	}
}

func TestCategoryMapper_SyncAll(t *testing.T) {
	t.Parallel()

	fake := erptest.New()

	var mu sync.Mutex
	var order []string
	fake.CreateErr = func(_ string, data erp.Record) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, data.String("item_group_name"))
		return nil
	}

	m := newTestMappers(t, fake)
	categories := []commerce.Category{
		{ID: "c2", Name: "Tea", ParentID: "c1"},
		{ID: "c1", Name: "Beverages"},
	}

	results := m.Categories.SyncAll(context.Background(), categories)

	require.Len(t, results, 2)
	require.Equal(t, "c2", results[0].Item)
	require.Equal(t, 2, Count(results, ActionCreated))
	require.Equal(t, []string{"Beverages", "Tea"}, order)

	groups := map[string]erp.Record{}
	for _, rec := range fake.Records(erp.DoctypeItemGroup) {
		groups[rec.Name()] = rec
	}
	require.Equal(t, "Beverages", groups["Tea"].String("parent_item_group"))
	require.Equal(t, defaultItemGroup, groups["Beverages"].String("parent_item_group"))
	require.True(t, groups["Beverages"].Flag("is_group"))
	require.False(t, groups["Tea"].Flag("is_group"))

	again := m.Categories.SyncAll(context.Background(), categories)
	require.Equal(t, 2, Count(again, ActionExists))
}

func TestCategoryMapper_CreateItemGroupIfNotExists(t *testing.T) {
	t.Parallel()

	fake := erptest.New()
	m := newTestMappers(t, fake)

	res := m.Categories.CreateItemGroupIfNotExists(context.Background(), "Snacks", "")
	require.Equal(t, ActionCreated, res.Action)

	res = m.Categories.CreateItemGroupIfNotExists(context.Background(), "Snacks", "")
	require.Equal(t, ActionExists, res.Action)
	require.Equal(t, 1, fake.CountCalls("POST", erp.DoctypeItemGroup))

	recs := fake.Records(erp.DoctypeItemGroup)
	require.Len(t, recs, 1)
	require.Equal(t, defaultItemGroup, recs[0].String("parent_item_group"))
}

func TestCategoryMapper_SyncAll_ParentOutsideBatch(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		seed       erp.Record
		wantParent string
	}{
		"parent linked in ERP": {
			seed:       erp.Record{"name": "Beverages", "item_group_name": "Beverages", "custom_external_id": "c1", "is_group": 1},
			wantParent: "Beverages",
		},
		"parent not in ERP": {
			wantParent: defaultItemGroup,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fake := erptest.New()
			if tc.seed != nil {
				fake.Put(erp.DoctypeItemGroup, tc.seed)
			}
			m := newTestMappers(t, fake)

			results := m.Categories.SyncAll(context.Background(), []commerce.Category{{ID: "c2", Name: "Tea", ParentID: "c1"}})

			require.Len(t, results, 1)
			require.Equal(t, ActionCreated, results[0].Action)
			require.Equal(t, tc.wantParent, results[0].Data.String("parent_item_group"))
		})
	}
}

func TestCategoryMapper_SyncAll_ParentLookupFails(t *testing.T) {
	t.Parallel()

	fake := erptest.New()
	fake.ExistsErr = func(_ string, lookup erp.Lookup) error {
		if lookup.ExternalID() == "c1" {
			return errors.New("connection reset")
		}
		return nil
	}
	m := newTestMappers(t, fake)

	results := m.Categories.SyncAll(context.Background(), []commerce.Category{{ID: "c2", Name: "Tea", ParentID: "c1"}})

	require.Equal(t, ActionFailed, results[0].Action)
	require.Contains(t, results[0].Error, "parent item group c1")
	require.Empty(t, fake.Records(erp.DoctypeItemGroup))
}

func TestCategoryMapper_SyncAll_UnlinkedGroup(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		linkedTo   string
		wantAction Action
		wantLink   string
	}{
		"unlinked group is adopted": {
			wantAction: ActionUpdated,
			wantLink:   "c1",
		},
		"group linked to another category": {
			linkedTo:   "c9",
			wantAction: ActionFailed,
			wantLink:   "c9",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fake := erptest.New()
			fake.Put(erp.DoctypeItemGroup, erp.Record{"name": "Beverages", "item_group_name": "Beverages", "custom_external_id": tc.linkedTo})
			m := newTestMappers(t, fake)
			categories := []commerce.Category{{ID: "c1", Name: "Beverages"}}

			results := m.Categories.SyncAll(context.Background(), categories)
			require.Equal(t, tc.wantAction, results[0].Action)

			recs := fake.Records(erp.DoctypeItemGroup)
			require.Len(t, recs, 1)
			require.Equal(t, tc.wantLink, recs[0].String("custom_external_id"))

			if tc.wantAction == ActionUpdated {
				again := m.Categories.SyncAll(context.Background(), categories)
				require.Equal(t, ActionExists, again[0].Action)
			}
		})
	}
}

func TestCategoryMapper_CreateCategoryGroupIfNotExists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := erptest.New()
	fake.Put(erp.DoctypeItemGroup, erp.Record{"name": "Beverages", "item_group_name": "Beverages", "custom_external_id": "c1", "is_group": 1})
	m := newTestMappers(t, fake)
	tea := commerce.Category{ID: "c2", Name: "Tea", ParentID: "c1"}

	res := m.Categories.CreateCategoryGroupIfNotExists(ctx, tea)
	require.Equal(t, ActionCreated, res.Action)

	res = m.Categories.CreateCategoryGroupIfNotExists(ctx, tea)
	require.Equal(t, ActionExists, res.Action)
	require.Equal(t, 1, fake.CountCalls("POST", erp.DoctypeItemGroup))

	results := m.Categories.SyncAll(ctx, []commerce.Category{tea})
	require.Equal(t, ActionExists, results[0].Action)

	groups := map[string]erp.Record{}
	for _, rec := range fake.Records(erp.DoctypeItemGroup) {
		groups[rec.Name()] = rec
	}
	require.Equal(t, "c2", groups["Tea"].String("custom_external_id"))
	require.Equal(t, "Beverages", groups["Tea"].String("parent_item_group"))
}

func TestCategoryMapper_CreateCategoryGroupIfNotExists_LinksExisting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := erptest.New()
	fake.Put(erp.DoctypeItemGroup, erp.Record{"name": "Snacks", "item_group_name": "Snacks"})
	m := newTestMappers(t, fake)
	snacks := commerce.Category{ID: "c3", Name: "Snacks"}

	res := m.Categories.CreateCategoryGroupIfNotExists(ctx, snacks)
	require.Equal(t, ActionExists, res.Action)
	require.Equal(t, "c3", res.Data.String("custom_external_id"))
	require.Zero(t, fake.CountCalls("POST", erp.DoctypeItemGroup))

	results := m.Categories.SyncAll(ctx, []commerce.Category{snacks})
	require.Equal(t, ActionExists, results[0].Action)
}

func TestCategoryMapper_CreateCategoryGroupIfNotExists_AuthFailure(t *testing.T) {
	t.Parallel()

	fake := erptest.New()
	fake.ExistsErr = func(string, erp.Lookup) error { return erptest.AuthError() }
	m := newTestMappers(t, fake)

	res := m.Categories.CreateCategoryGroupIfNotExists(context.Background(), commerce.Category{ID: "c2", Name: "Tea", ParentID: "c1"})

	require.Equal(t, ActionSkipped, res.Action)
	require.True(t, res.Success)
	require.Empty(t, fake.Records(erp.DoctypeItemGroup))
}
