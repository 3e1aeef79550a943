package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"collection-runner/internal/models"
)

// Memory is an in-process Store used by tests and single-node setups. Records
// are deep-copied on the way in and out so callers never alias stored state.
type Memory struct {
	mu           sync.RWMutex
	collections  map[string]*models.Collection
	environments map[string]*models.Environment
	versions     map[string]*models.CollectionVersion
	shares       map[string]*models.Share
	runs         map[string]*models.Run
}

func NewMemory() *Store {
	m := &Memory{
		collections:  make(map[string]*models.Collection),
		environments: make(map[string]*models.Environment),
		versions:     make(map[string]*models.CollectionVersion),
		shares:       make(map[string]*models.Share),
		runs:         make(map[string]*models.Run),
	}
	return &Store{
		Collections:  (*memCollections)(m),
		Environments: (*memEnvironments)(m),
		Versions:     (*memVersions)(m),
		Shares:       (*memShares)(m),
		Runs:         (*memRuns)(m),
	}
}

// deepCopy round-trips v through JSON into dst. All stored models are plain
// JSON documents, so this is a faithful copy.
func deepCopy(dst, src any) {
	data, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		panic(err)
	}
}

func applyPage[T any](items []T, page Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return nil
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

type memCollections Memory

func (m *memCollections) Create(_ context.Context, c *models.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := new(models.Collection)
	deepCopy(stored, c)
	m.collections[c.ID] = stored
	return nil
}

func (m *memCollections) Get(_ context.Context, id string) (*models.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := new(models.Collection)
	deepCopy(out, stored)
	return out, nil
}

func (m *memCollections) Update(_ context.Context, c *models.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[c.ID]; !ok {
		return ErrNotFound
	}
	stored := new(models.Collection)
	deepCopy(stored, c)
	m.collections[c.ID] = stored
	return nil
}

func (m *memCollections) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[id]; !ok {
		return ErrNotFound
	}
	delete(m.collections, id)
	return nil
}

func (m *memCollections) List(_ context.Context, ownerID string, page Page) ([]models.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Collection
	for _, stored := range m.collections {
		if ownerID != "" && stored.OwnerID != ownerID {
			continue
		}
		var c models.Collection
		deepCopy(&c, stored)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return applyPage(out, page), nil
}

type memEnvironments Memory

func (m *memEnvironments) Create(_ context.Context, e *models.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := new(models.Environment)
	deepCopy(stored, e)
	m.environments[e.ID] = stored
	return nil
}

func (m *memEnvironments) Get(_ context.Context, id string) (*models.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.environments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := new(models.Environment)
	deepCopy(out, stored)
	return out, nil
}

func (m *memEnvironments) Update(_ context.Context, e *models.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.environments[e.ID]; !ok {
		return ErrNotFound
	}
	stored := new(models.Environment)
	deepCopy(stored, e)
	m.environments[e.ID] = stored
	return nil
}

func (m *memEnvironments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.environments[id]; !ok {
		return ErrNotFound
	}
	delete(m.environments, id)
	return nil
}

func (m *memEnvironments) List(_ context.Context, page Page) ([]models.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Environment
	for _, stored := range m.environments {
		var e models.Environment
		deepCopy(&e, stored)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return applyPage(out, page), nil
}

type memVersions Memory

func (m *memVersions) Create(_ context.Context, v *models.CollectionVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := new(models.CollectionVersion)
	deepCopy(stored, v)
	m.versions[v.ID] = stored
	return nil
}

func (m *memVersions) Get(_ context.Context, id string) (*models.CollectionVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := new(models.CollectionVersion)
	deepCopy(out, stored)
	return out, nil
}

func (m *memVersions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[id]; !ok {
		return ErrNotFound
	}
	delete(m.versions, id)
	return nil
}

func (m *memVersions) ListByCollection(_ context.Context, collectionID string) ([]models.CollectionVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CollectionVersion
	for _, stored := range m.versions {
		if stored.CollectionID != collectionID {
			continue
		}
		var v models.CollectionVersion
		deepCopy(&v, stored)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

type memShares Memory

func (m *memShares) Create(_ context.Context, s *models.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := new(models.Share)
	deepCopy(stored, s)
	m.shares[s.Token] = stored
	return nil
}

func (m *memShares) Get(_ context.Context, token string) (*models.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.shares[token]
	if !ok {
		return nil, ErrNotFound
	}
	out := new(models.Share)
	deepCopy(out, stored)
	return out, nil
}

func (m *memShares) Update(_ context.Context, s *models.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[s.Token]; !ok {
		return ErrNotFound
	}
	stored := new(models.Share)
	deepCopy(stored, s)
	m.shares[s.Token] = stored
	return nil
}

func (m *memShares) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[token]; !ok {
		return ErrNotFound
	}
	delete(m.shares, token)
	return nil
}

type memRuns Memory

func (m *memRuns) Create(_ context.Context, r *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := new(models.Run)
	deepCopy(stored, r)
	m.runs[r.ID] = stored
	return nil
}

func (m *memRuns) Get(_ context.Context, id string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := new(models.Run)
	deepCopy(out, stored)
	return out, nil
}

func (m *memRuns) Update(_ context.Context, r *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; !ok {
		return ErrNotFound
	}
	stored := new(models.Run)
	deepCopy(stored, r)
	m.runs[r.ID] = stored
	return nil
}

func (m *memRuns) ListByCollection(_ context.Context, collectionID string, page Page) ([]models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Run
	for _, stored := range m.runs {
		if stored.CollectionID != collectionID {
			continue
		}
		var r models.Run
		deepCopy(&r, stored)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return applyPage(out, page), nil
}
