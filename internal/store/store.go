// Package store defines the persistence collaborator: a record store keyed by
// id for collections, environments, versions, shares and runs. Callers
// distinguish a missing record (ErrNotFound) from every other storage error.
package store

import (
	"context"
	"errors"

	"collection-runner/internal/models"
)

// ErrNotFound reports that the requested record id does not resolve.
var ErrNotFound = errors.New("record not found")

// Page bounds a filtered query.
type Page struct {
	Limit  int
	Offset int
}

// CollectionStore persists collection documents.
type CollectionStore interface {
	Create(ctx context.Context, c *models.Collection) error
	Get(ctx context.Context, id string) (*models.Collection, error)
	Update(ctx context.Context, c *models.Collection) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string, page Page) ([]models.Collection, error)
}

// EnvironmentStore persists environments.
type EnvironmentStore interface {
	Create(ctx context.Context, e *models.Environment) error
	Get(ctx context.Context, id string) (*models.Environment, error)
	Update(ctx context.Context, e *models.Environment) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page Page) ([]models.Environment, error)
}

// VersionStore persists immutable collection snapshots.
type VersionStore interface {
	Create(ctx context.Context, v *models.CollectionVersion) error
	Get(ctx context.Context, id string) (*models.CollectionVersion, error)
	Delete(ctx context.Context, id string) error
	ListByCollection(ctx context.Context, collectionID string) ([]models.CollectionVersion, error)
}

// ShareStore persists share tokens. Get resolves by token.
type ShareStore interface {
	Create(ctx context.Context, s *models.Share) error
	Get(ctx context.Context, token string) (*models.Share, error)
	Update(ctx context.Context, s *models.Share) error
	Delete(ctx context.Context, token string) error
}

// RunStore persists run results.
type RunStore interface {
	Create(ctx context.Context, r *models.Run) error
	Get(ctx context.Context, id string) (*models.Run, error)
	Update(ctx context.Context, r *models.Run) error
	ListByCollection(ctx context.Context, collectionID string, page Page) ([]models.Run, error)
}

// Store bundles the per-entity stores a deployment provides.
type Store struct {
	Collections  CollectionStore
	Environments EnvironmentStore
	Versions     VersionStore
	Shares       ShareStore
	Runs         RunStore
}
