// Package collection owns the persistent tree model: collections, their item
// arenas, and the ordering invariants (tree-shaped, dense sibling positions).
// Every successful mutation bumps the collection version by exactly one and
// snapshots it; reads go through the cache, writes go through storage first.
package collection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"collection-runner/internal/cache"
	"collection-runner/internal/models"
	"collection-runner/internal/store"
	"collection-runner/internal/validator"
	"collection-runner/internal/version"
)

// ErrInvalid reports a mutation that would break a model invariant. It wraps
// the specific reason.
type ErrInvalid struct {
	Reason string
}

func (e *ErrInvalid) Error() string { return e.Reason }

func invalidf(format string, args ...any) error {
	return &ErrInvalid{Reason: fmt.Sprintf(format, args...)}
}

type Service struct {
	collections    store.CollectionStore
	cache          cache.CollectionCache
	versions       *version.Manager
	maxHeaderCount int
}

func NewService(collections store.CollectionStore, c cache.CollectionCache, versions *version.Manager, maxHeaderCount int) *Service {
	if c == nil {
		c = cache.Disabled{}
	}
	return &Service{
		collections:    collections,
		cache:          c,
		versions:       versions,
		maxHeaderCount: maxHeaderCount,
	}
}

// Create persists a new collection and takes its first snapshot.
func (s *Service) Create(ctx context.Context, name, description, ownerID string, variables map[string]string) (*models.Collection, error) {
	if name == "" {
		return nil, invalidf("collection name is required")
	}
	now := time.Now().UTC()
	c := &models.Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Variables:   variables,
		Items:       []models.Item{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.collections.Create(ctx, c); err != nil {
		return nil, err
	}
	s.cache.Set(ctx, c)
	if _, err := s.versions.Snapshot(ctx, c, "create", "collection created"); err != nil {
		return nil, err
	}
	return c, nil
}

// Import persists a collection produced by the format converter.
func (s *Service) Import(ctx context.Context, c *models.Collection) error {
	if err := s.collections.Create(ctx, c); err != nil {
		return err
	}
	s.cache.Set(ctx, c)
	_, err := s.versions.Snapshot(ctx, c, "import", "imported from Postman format")
	return err
}

// Get reads through the cache, falling back to storage on a miss.
func (s *Service) Get(ctx context.Context, id string) (*models.Collection, error) {
	if c, ok := s.cache.Get(ctx, id); ok {
		return c, nil
	}
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, c)
	return c, nil
}

func (s *Service) List(ctx context.Context, ownerID string, page store.Page) ([]models.Collection, error) {
	return s.collections.List(ctx, ownerID, page)
}

// Update applies metadata changes. Nil pointers leave fields untouched.
func (s *Service) Update(ctx context.Context, id string, name, description *string, variables *map[string]string, tags *[]string) (*models.Collection, error) {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if *name == "" {
			return nil, invalidf("collection name cannot be empty")
		}
		c.Name = *name
	}
	if description != nil {
		c.Description = *description
	}
	if variables != nil {
		c.Variables = *variables
	}
	if tags != nil {
		c.Tags = *tags
	}
	return c, s.persist(ctx, c, "update", "collection metadata updated")
}

// Restore replaces the collection's content with a stored snapshot. The
// restored document is written through to the cache like every other mutation.
func (s *Service) Restore(ctx context.Context, collectionID, versionID string) (*models.Collection, error) {
	restored, err := s.versions.Restore(ctx, collectionID, versionID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, restored)
	return restored, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.collections.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// persist writes a mutated collection back: version +1, write-through cache,
// snapshot.
func (s *Service) persist(ctx context.Context, c *models.Collection, label, summary string) error {
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	if err := s.collections.Update(ctx, c); err != nil {
		return err
	}
	s.cache.Set(ctx, c)
	_, err := s.versions.Snapshot(ctx, c, label, summary)
	return err
}

// CreateItemParams carries everything needed to add a folder or request.
type CreateItemParams struct {
	ParentID         string
	Name             string
	Description      string
	Type             string
	PreRequestScript string
	TestScript       string
	Request          *models.RequestSpec
}

// CreateItem appends an item at the end of its sibling list.
func (s *Service) CreateItem(ctx context.Context, collectionID string, p CreateItemParams) (*models.Item, error) {
	if p.Name == "" {
		return nil, invalidf("item name is required")
	}
	if p.Type != models.ItemTypeFolder && p.Type != models.ItemTypeRequest {
		return nil, invalidf("item_type must be 'folder' or 'request'")
	}

	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	if p.ParentID != "" {
		parent := findItem(c, p.ParentID)
		if parent == nil {
			return nil, invalidf("parent item not found")
		}
		if parent.Type != models.ItemTypeFolder {
			return nil, invalidf("parent item must be a folder")
		}
	}

	item := models.Item{
		ID:               uuid.NewString(),
		ParentID:         p.ParentID,
		Name:             p.Name,
		Description:      p.Description,
		Type:             p.Type,
		Position:         len(siblingIDs(c, p.ParentID)),
		PreRequestScript: p.PreRequestScript,
		TestScript:       p.TestScript,
	}
	if p.Type == models.ItemTypeRequest {
		if err := validator.ValidateRequestSpec(p.Request, s.maxHeaderCount); err != nil {
			return nil, &ErrInvalid{Reason: err.Error()}
		}
		item.Request = p.Request
	}

	c.Items = append(c.Items, item)
	if err := s.persist(ctx, c, "item-create", fmt.Sprintf("added %q", item.Name)); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItemParams carries partial item updates; nil means unchanged.
type UpdateItemParams struct {
	Name             *string
	Description      *string
	PreRequestScript *string
	TestScript       *string
	Request          *models.RequestSpec
}

func (s *Service) UpdateItem(ctx context.Context, collectionID, itemID string, p UpdateItemParams) (*models.Item, error) {
	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	item := findItem(c, itemID)
	if item == nil {
		return nil, store.ErrNotFound
	}

	if p.Name != nil {
		if *p.Name == "" {
			return nil, invalidf("item name cannot be empty")
		}
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.PreRequestScript != nil {
		item.PreRequestScript = *p.PreRequestScript
	}
	if p.TestScript != nil {
		item.TestScript = *p.TestScript
	}
	if p.Request != nil {
		if item.Type != models.ItemTypeRequest {
			return nil, invalidf("only request items carry a request spec")
		}
		if err := validator.ValidateRequestSpec(p.Request, s.maxHeaderCount); err != nil {
			return nil, &ErrInvalid{Reason: err.Error()}
		}
		item.Request = p.Request
	}

	updated := *item
	if err := s.persist(ctx, c, "item-update", fmt.Sprintf("updated %q", item.Name)); err != nil {
		return nil, err
	}
	return &updated, nil
}

// MoveItem reparents and/or repositions an item, keeping sibling positions
// dense in both the old and new parent. Moving a folder under its own
// descendant would create a cycle and is rejected.
func (s *Service) MoveItem(ctx context.Context, collectionID, itemID, newParentID string, position int) (*models.Item, error) {
	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	item := findItem(c, itemID)
	if item == nil {
		return nil, store.ErrNotFound
	}

	if newParentID != "" {
		parent := findItem(c, newParentID)
		if parent == nil {
			return nil, invalidf("target parent not found")
		}
		if parent.Type != models.ItemTypeFolder {
			return nil, invalidf("target parent must be a folder")
		}
		if newParentID == itemID || isDescendant(c, itemID, newParentID) {
			return nil, invalidf("cannot move an item under itself")
		}
	}

	oldParent := item.ParentID
	item.ParentID = newParentID
	renumber(c, oldParent, itemID)

	siblings := siblingIDs(c, newParentID)
	if position < 0 || position > len(siblings)-1 {
		position = len(siblings) - 1
	}
	item.Position = position
	renumberAround(c, newParentID, itemID, position)

	moved := *item
	if err := s.persist(ctx, c, "item-move", fmt.Sprintf("moved %q", item.Name)); err != nil {
		return nil, err
	}
	return &moved, nil
}

// DeleteItem removes an item and its whole subtree, then closes the ordinal
// gap among the remaining siblings.
func (s *Service) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	item := findItem(c, itemID)
	if item == nil {
		return store.ErrNotFound
	}
	name := item.Name
	parentID := item.ParentID

	doomed := map[string]bool{itemID: true}
	// Items are stored parent-before-child only by convention, so sweep until
	// the doomed set stops growing.
	for {
		grew := false
		for _, it := range c.Items {
			if !doomed[it.ID] && it.ParentID != "" && doomed[it.ParentID] {
				doomed[it.ID] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	kept := c.Items[:0]
	for _, it := range c.Items {
		if !doomed[it.ID] {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	renumber(c, parentID, "")

	return s.persist(ctx, c, "item-delete", fmt.Sprintf("removed %q", name))
}

// GetItem returns a single item from a collection.
func (s *Service) GetItem(ctx context.Context, collectionID, itemID string) (*models.Item, error) {
	c, err := s.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	item := findItem(c, itemID)
	if item == nil {
		return nil, store.ErrNotFound
	}
	return item, nil
}

// Tree assembles the nested view of a collection's item arena, children
// sorted by position.
func (s *Service) Tree(ctx context.Context, id string) (*models.CollectionTree, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CollectionTree{Collection: *c, Items: BuildTree(c.Items)}, nil
}

// BuildTree converts the flat item arena into nested nodes.
func BuildTree(items []models.Item) []models.ItemTreeNode {
	children := make(map[string][]models.Item)
	for _, item := range items {
		children[item.ParentID] = append(children[item.ParentID], item)
	}
	for _, siblings := range children {
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
	}

	var build func(parentID string) []models.ItemTreeNode
	build = func(parentID string) []models.ItemTreeNode {
		siblings := children[parentID]
		nodes := make([]models.ItemTreeNode, 0, len(siblings))
		for _, item := range siblings {
			node := models.ItemTreeNode{
				ID:               item.ID,
				Name:             item.Name,
				Description:      item.Description,
				ItemType:         item.Type,
				Position:         item.Position,
				PreRequestScript: item.PreRequestScript,
				TestScript:       item.TestScript,
				Request:          item.Request,
			}
			if item.Type == models.ItemTypeFolder {
				node.Children = build(item.ID)
			}
			nodes = append(nodes, node)
		}
		return nodes
	}
	return build("")
}

func findItem(c *models.Collection, id string) *models.Item {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}

func siblingIDs(c *models.Collection, parentID string) []string {
	var ids []string
	for _, item := range c.Items {
		if item.ParentID == parentID {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func isDescendant(c *models.Collection, ancestorID, id string) bool {
	for id != "" {
		item := findItem(c, id)
		if item == nil {
			return false
		}
		if item.ParentID == ancestorID {
			return true
		}
		id = item.ParentID
	}
	return false
}

// renumber re-assigns dense positions to parentID's children in their current
// order, skipping skipID.
func renumber(c *models.Collection, parentID, skipID string) {
	var siblings []*models.Item
	for i := range c.Items {
		if c.Items[i].ParentID == parentID && c.Items[i].ID != skipID {
			siblings = append(siblings, &c.Items[i])
		}
	}
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
	for pos, item := range siblings {
		item.Position = pos
	}
}

// renumberAround makes room for itemID at position and renumbers everything
// else densely around it.
func renumberAround(c *models.Collection, parentID, itemID string, position int) {
	var siblings []*models.Item
	for i := range c.Items {
		if c.Items[i].ParentID == parentID && c.Items[i].ID != itemID {
			siblings = append(siblings, &c.Items[i])
		}
	}
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
	pos := 0
	for _, item := range siblings {
		if pos == position {
			pos++
		}
		item.Position = pos
		pos++
	}
}
