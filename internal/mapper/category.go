package mapper

import (
	"context"
	"fmt"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/erp"
)

// CategoryMapper pushes categories as ERP Item Groups.
type CategoryMapper struct {
	base
}

// ToItemGroup converts a category to its ERP Item Group representation.
func (m *CategoryMapper) ToItemGroup(c commerce.Category, parentGroup string) ItemGroupPayload {
	return ItemGroupPayload{
		CustomExternalID: c.ID,
		IsGroup:          flag(c.IsGroup),
		ItemGroupName:    c.Name,
		ParentItemGroup:  firstNonEmpty(parentGroup, m.defaults.ItemGroup),
	}
}

// Create creates the ERP Item Group for a category.
func (m *CategoryMapper) Create(ctx context.Context, c commerce.Category, parentGroup string) (erp.Record, error) {
	rec, err := m.client.Create(ctx, erp.DoctypeItemGroup, m.ToItemGroup(c, parentGroup))
	if err != nil {
		return nil, fmt.Errorf("creating item group for category %s: %w", c.ID, err)
	}
	return rec, nil
}

// Update writes the mapped category fields to an existing ERP Item Group.
func (m *CategoryMapper) Update(ctx context.Context, name string, c commerce.Category, parentGroup string) (erp.Record, error) {
	payload := m.ToItemGroup(c, parentGroup)
	payload.CustomExternalID = ""
	if parentGroup == "" {
		payload.ParentItemGroup = ""
	}

	rec, err := m.client.Update(ctx, erp.DoctypeItemGroup, name, payload)
	if err != nil {
		return nil, fmt.Errorf("updating item group %s for category %s: %w", name, c.ID, err)
	}
	return rec, nil
}

// SyncAll upserts every category. Parents within the batch are pushed before their children,
// and a category with children in the batch is pushed as a group. A parent outside the batch
// is resolved through its ERP link.
func (m *CategoryMapper) SyncAll(ctx context.Context, categories []commerce.Category) []Result {
	byID := make(map[string]commerce.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	for _, c := range categories {
		if parent, ok := byID[c.ParentID]; ok {
			parent.IsGroup = true
			byID[parent.ID] = parent
		}
	}

	results := make([]Result, len(categories))
	for _, level := range categoryLevels(categories) {
		levelResults := SyncEach(ctx, m.concurrency, level, func(ctx context.Context, idx int) Result {
			c := byID[categories[idx].ID]
			parentGroup, err := m.parentGroup(ctx, c, byID)
			if err != nil {
				m.logger.Error("ERP lookup failed", "doctype", erp.DoctypeItemGroup, "item", c.ID, "error", err)
				return Failed(c.ID, err)
			}
			return m.push(ctx, c, parentGroup)
		})
		for i, idx := range level {
			results[idx] = levelResults[i]
		}
	}
	return results
}

// Upsert pushes one category unless it is already linked in the ERP.
// Its parent must already be linked to land under the right group.
func (m *CategoryMapper) Upsert(ctx context.Context, c commerce.Category) Result {
	parentGroup, err := m.parentGroup(ctx, c, nil)
	if err != nil {
		m.logger.Error("ERP lookup failed", "doctype", erp.DoctypeItemGroup, "item", c.ID, "error", err)
		return Failed(c.ID, err)
	}
	return m.push(ctx, c, parentGroup)
}

// parentGroup returns the Item Group name of the category's parent, or "" for the root group.
func (m *CategoryMapper) parentGroup(ctx context.Context, c commerce.Category, batch map[string]commerce.Category) (string, error) {
	if c.ParentID == "" {
		return "", nil
	}
	if parent, ok := batch[c.ParentID]; ok {
		return parent.Name, nil
	}

	rec, found, err := m.client.Exists(ctx, erp.DoctypeItemGroup, erp.ByExternalID(c.ParentID))
	if err != nil {
		return "", fmt.Errorf("looking up parent item group %s: %w", c.ParentID, err)
	}
	if !found {
		m.logger.Warn("parent category not in ERP, using root item group", "item", c.ID, "parent_id", c.ParentID)
		return "", nil
	}
	return rec.Name(), nil
}

// push creates the category's Item Group unless one is linked already.
// A group that exists by name without a link is adopted instead.
func (m *CategoryMapper) push(ctx context.Context, c commerce.Category, parentGroup string) Result {
	rec, found, err := m.client.Exists(ctx, erp.DoctypeItemGroup, erp.ByExternalID(c.ID))
	if err != nil {
		m.logger.Error("ERP lookup failed", "doctype", erp.DoctypeItemGroup, "item", c.ID, "error", err)
		return Failed(c.ID, fmt.Errorf("looking up %s %s: %w", erp.DoctypeItemGroup, c.ID, err))
	}
	if found {
		m.logger.Debug("already synced", "doctype", erp.DoctypeItemGroup, "item", c.ID, "erp_name", rec.Name())
		return Exists(c.ID, rec)
	}

	rec, err = m.Create(ctx, c, parentGroup)
	switch {
	case err == nil:
		m.logger.Info("created in ERP", "doctype", erp.DoctypeItemGroup, "item", c.ID, "erp_name", rec.Name())
		return Created(c.ID, rec)
	case erp.IsDuplicate(err):
		return m.adopt(ctx, c, err)
	default:
		m.logger.Error("ERP create failed", "doctype", erp.DoctypeItemGroup, "item", c.ID, "error", err)
		return Failed(c.ID, err)
	}
}

// adopt links the unlinked Item Group named after the category to it.
func (m *CategoryMapper) adopt(ctx context.Context, c commerce.Category, createErr error) Result {
	rec, found, err := m.client.Exists(ctx, erp.DoctypeItemGroup, erp.ByName(c.Name))
	if err != nil {
		return Failed(c.ID, fmt.Errorf("looking up item group %s: %w", c.Name, err))
	}
	if !found {
		return Failed(c.ID, createErr)
	}
	if linked := rec.String(erp.FieldExternalID); linked != "" && linked != c.ID {
		m.logger.Error("item group linked to another category", "item", c.ID, "erp_name", rec.Name(), "linked_to", linked)
		return Failed(c.ID, fmt.Errorf("item group %s is linked to category %s: %w", rec.Name(), linked, createErr))
	}

	rec, err = m.client.Update(ctx, erp.DoctypeItemGroup, rec.Name(), ItemGroupPayload{CustomExternalID: c.ID})
	if err != nil {
		m.logger.Error("ERP update failed", "doctype", erp.DoctypeItemGroup, "item", c.ID, "error", err)
		return Failed(c.ID, fmt.Errorf("linking item group %s to category %s: %w", c.Name, c.ID, err))
	}

	m.logger.Info("linked existing item group", "item", c.ID, "erp_name", rec.Name())
	return Updated(c.ID, rec)
}

// CreateItemGroupIfNotExists provisions an Item Group by name under parent.
func (m *CategoryMapper) CreateItemGroupIfNotExists(ctx context.Context, name string, parent string) Result {
	return m.ensureNamed(ctx, erp.DoctypeItemGroup, name, ItemGroupPayload{
		IsGroup:         flag(false),
		ItemGroupName:   name,
		ParentItemGroup: firstNonEmpty(parent, m.defaults.ItemGroup),
	})
}

// CreateCategoryGroupIfNotExists provisions the Item Group of a category by name, as
// CreateItemGroupIfNotExists does, but creates it linked and under the parent's group.
// An existing group without a link is linked to the category.
func (m *CategoryMapper) CreateCategoryGroupIfNotExists(ctx context.Context, c commerce.Category) Result {
	parentGroup, err := m.parentGroup(ctx, c, nil)
	switch {
	case erp.IsAuthentication(err):
		m.logger.Warn("skipping provisioning, ERP denied access", "doctype", erp.DoctypeItemGroup, "item", c.Name, "error", err)
		return Skipped(c.Name, err)
	case err != nil:
		m.logger.Error("ERP lookup failed", "doctype", erp.DoctypeItemGroup, "item", c.Name, "error", err)
		return Failed(c.Name, err)
	}

	res := m.ensureNamed(ctx, erp.DoctypeItemGroup, c.Name, m.ToItemGroup(c, parentGroup))
	if res.Action != ActionExists || res.Data == nil || res.Data.String(erp.FieldExternalID) != "" {
		return res
	}

	rec, err := m.client.Update(ctx, erp.DoctypeItemGroup, res.Data.Name(), ItemGroupPayload{CustomExternalID: c.ID})
	if err != nil {
		m.logger.Warn("linking item group failed", "item", c.Name, "category_id", c.ID, "error", err)
		return res
	}
	m.logger.Info("linked existing item group", "item", c.ID, "erp_name", rec.Name())
	return Exists(c.Name, rec)
}

// categoryLevels groups category indexes by depth within the batch.
// Parents outside the batch count as roots; cycles are cut at the first revisit.
func categoryLevels(categories []commerce.Category) [][]int {
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c.ID] = i
	}

	depths := make([]int, len(categories))
	maxDepth := 0
	for i, c := range categories {
		depth := 0
		seen := map[string]bool{c.ID: true}
		for parentID := c.ParentID; parentID != ""; {
			j, ok := index[parentID]
			if !ok || seen[parentID] {
				break
			}
			seen[parentID] = true
			depth++
			parentID = categories[j].ParentID
		}
		depths[i] = depth
		maxDepth = max(maxDepth, depth)
	}

	levels := make([][]int, maxDepth+1)
	for i, d := range depths {
		levels[d] = append(levels[d], i)
	}
	return levels
}
