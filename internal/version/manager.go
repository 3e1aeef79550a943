// Package version snapshots collections on every mutation and restores past
// snapshots. History is bounded: beyond the configured cap the oldest snapshot
// is evicted first.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"collection-runner/internal/models"
	"collection-runner/internal/store"
)

const DefaultMaxVersions = 10

type Manager struct {
	versions    store.VersionStore
	collections store.CollectionStore
	maxVersions int
}

func NewManager(versions store.VersionStore, collections store.CollectionStore, maxVersions int) *Manager {
	if maxVersions <= 0 {
		maxVersions = DefaultMaxVersions
	}
	return &Manager{versions: versions, collections: collections, maxVersions: maxVersions}
}

// Snapshot deep-copies the collection into a new immutable version and evicts
// the oldest snapshots past the cap.
func (m *Manager) Snapshot(ctx context.Context, c *models.Collection, label, summary string) (*models.CollectionVersion, error) {
	snapshot, err := deepCopyCollection(c)
	if err != nil {
		return nil, err
	}

	v := &models.CollectionVersion{
		ID:           uuid.NewString(),
		CollectionID: c.ID,
		Sequence:     c.Version,
		Label:        label,
		Summary:      summary,
		Snapshot:     *snapshot,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.versions.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	if err := m.evict(ctx, c.ID); err != nil {
		return nil, err
	}
	return v, nil
}

func (m *Manager) evict(ctx context.Context, collectionID string) error {
	versions, err := m.versions.ListByCollection(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	for len(versions) > m.maxVersions {
		if err := m.versions.Delete(ctx, versions[0].ID); err != nil {
			return fmt.Errorf("failed to evict snapshot: %w", err)
		}
		versions = versions[1:]
	}
	return nil
}

// Get returns one snapshot, scoped to the collection so a version ID from
// another collection cannot be read through the wrong path.
func (m *Manager) Get(ctx context.Context, collectionID, versionID string) (*models.CollectionVersion, error) {
	v, err := m.versions.Get(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.CollectionID != collectionID {
		return nil, store.ErrNotFound
	}
	return v, nil
}

// List returns a collection's snapshots in sequence order.
func (m *Manager) List(ctx context.Context, collectionID string) ([]models.CollectionVersion, error) {
	return m.versions.ListByCollection(ctx, collectionID)
}

// Restore replaces the live collection's content with the snapshot's. The
// version counter keeps moving forward (a past number is never reused) and the
// restore itself produces a fresh snapshot.
func (m *Manager) Restore(ctx context.Context, collectionID, versionID string) (*models.Collection, error) {
	v, err := m.versions.Get(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.CollectionID != collectionID {
		return nil, store.ErrNotFound
	}

	live, err := m.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	restored, err := deepCopyCollection(&v.Snapshot)
	if err != nil {
		return nil, err
	}
	restored.ID = live.ID
	restored.Version = live.Version + 1
	restored.CreatedAt = live.CreatedAt
	restored.UpdatedAt = time.Now().UTC()

	if err := m.collections.Update(ctx, restored); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("restored from version %d", v.Sequence)
	if _, err := m.Snapshot(ctx, restored, "restore", summary); err != nil {
		return nil, err
	}
	return restored, nil
}

// Diff produces a human-readable change list between two collection states:
// name, description and item membership.
func Diff(old, new *models.Collection) []string {
	var changes []string

	if old.Name != new.Name {
		changes = append(changes, fmt.Sprintf("name changed from %q to %q", old.Name, new.Name))
	}
	if old.Description != new.Description {
		changes = append(changes, "description changed")
	}
	if len(old.Items) != len(new.Items) {
		changes = append(changes, fmt.Sprintf("item count changed from %d to %d", len(old.Items), len(new.Items)))
	}

	oldItems := make(map[string]string, len(old.Items))
	for _, item := range old.Items {
		oldItems[item.ID] = item.Name
	}
	newItems := make(map[string]string, len(new.Items))
	for _, item := range new.Items {
		newItems[item.ID] = item.Name
	}
	for id, name := range newItems {
		if _, ok := oldItems[id]; !ok {
			changes = append(changes, fmt.Sprintf("added %q", name))
		}
	}
	for id, name := range oldItems {
		if _, ok := newItems[id]; !ok {
			changes = append(changes, fmt.Sprintf("removed %q", name))
		}
	}

	if len(changes) == 0 {
		changes = append(changes, "no changes")
	}
	return changes
}

func deepCopyCollection(c *models.Collection) (*models.Collection, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to copy collection: %w", err)
	}
	out := new(models.Collection)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to copy collection: %w", err)
	}
	return out, nil
}
