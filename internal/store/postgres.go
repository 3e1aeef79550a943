package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"collection-runner/internal/models"
)

// NewPostgres wires every entity store onto one shared *sql.DB. Documents are
// stored whole in JSONB `doc` columns with a few indexed key columns alongside,
// so the record shapes stay owned by the models package, not the schema.
func NewPostgres(db *sql.DB) *Store {
	return &Store{
		Collections:  &pgCollections{db: db},
		Environments: &pgEnvironments{db: db},
		Versions:     &pgVersions{db: db},
		Shares:       &pgShares{db: db},
		Runs:         &pgRuns{db: db},
	}
}

func marshalDoc(v any) ([]byte, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

func pageClause(page Page) (int, int) {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type pgCollections struct {
	db *sql.DB
}

func (s *pgCollections) Create(ctx context.Context, c *models.Collection) error {
	doc, err := marshalDoc(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (id, owner_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.OwnerID, doc, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	return nil
}

func (s *pgCollections) Get(ctx context.Context, id string) (*models.Collection, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM collections WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection: %w", err)
	}
	var c models.Collection
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return &c, nil
}

func (s *pgCollections) Update(ctx context.Context, c *models.Collection) error {
	doc, err := marshalDoc(c)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE collections SET doc = $1, updated_at = $2 WHERE id = $3
	`, doc, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgCollections) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgCollections) List(ctx context.Context, ownerID string, page Page) ([]models.Collection, error) {
	limit, offset := pageClause(page)
	var (
		rows *sql.Rows
		err  error
	)
	if ownerID != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT doc FROM collections WHERE owner_id = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, ownerID, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT doc FROM collections ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := []models.Collection{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		var c models.Collection
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("failed to decode collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

type pgEnvironments struct {
	db *sql.DB
}

func (s *pgEnvironments) Create(ctx context.Context, e *models.Environment) error {
	doc, err := marshalDoc(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO environments (id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, doc, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert environment: %w", err)
	}
	return nil
}

func (s *pgEnvironments) Get(ctx context.Context, id string) (*models.Environment, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM environments WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch environment: %w", err)
	}
	var e models.Environment
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	return &e, nil
}

func (s *pgEnvironments) Update(ctx context.Context, e *models.Environment) error {
	doc, err := marshalDoc(e)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE environments SET doc = $1, updated_at = $2 WHERE id = $3
	`, doc, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update environment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgEnvironments) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM environments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete environment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgEnvironments) List(ctx context.Context, page Page) ([]models.Environment, error) {
	limit, offset := pageClause(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM environments ORDER BY doc->>'name' ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	environments := []models.Environment{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		var e models.Environment
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("failed to decode environment: %w", err)
		}
		environments = append(environments, e)
	}
	return environments, rows.Err()
}

type pgVersions struct {
	db *sql.DB
}

func (s *pgVersions) Create(ctx context.Context, v *models.CollectionVersion) error {
	doc, err := marshalDoc(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collection_versions (id, collection_id, sequence, doc, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.CollectionID, v.Sequence, doc, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

func (s *pgVersions) Get(ctx context.Context, id string) (*models.CollectionVersion, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM collection_versions WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch version: %w", err)
	}
	var v models.CollectionVersion
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("failed to decode version: %w", err)
	}
	return &v, nil
}

func (s *pgVersions) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM collection_versions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgVersions) ListByCollection(ctx context.Context, collectionID string) ([]models.CollectionVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM collection_versions WHERE collection_id = $1 ORDER BY sequence ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []models.CollectionVersion{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		var v models.CollectionVersion
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("failed to decode version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

type pgShares struct {
	db *sql.DB
}

func (s *pgShares) Create(ctx context.Context, sh *models.Share) error {
	doc, err := marshalDoc(sh)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shares (token, collection_id, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, sh.Token, sh.CollectionID, doc, sh.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

func (s *pgShares) Get(ctx context.Context, token string) (*models.Share, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM shares WHERE token = $1`, token).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch share: %w", err)
	}
	var sh models.Share
	if err := json.Unmarshal(doc, &sh); err != nil {
		return nil, fmt.Errorf("failed to decode share: %w", err)
	}
	return &sh, nil
}

func (s *pgShares) Update(ctx context.Context, sh *models.Share) error {
	doc, err := marshalDoc(sh)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE shares SET doc = $1 WHERE token = $2`, doc, sh.Token)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgShares) Delete(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

type pgRuns struct {
	db *sql.DB
}

func (s *pgRuns) Create(ctx context.Context, r *models.Run) error {
	doc, err := marshalDoc(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, collection_id, doc, started_at)
		VALUES ($1, $2, $3, $4)
	`, r.ID, r.CollectionID, doc, r.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *pgRuns) Get(ctx context.Context, id string) (*models.Run, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM runs WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	var r models.Run
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &r, nil
}

func (s *pgRuns) Update(ctx context.Context, r *models.Run) error {
	doc, err := marshalDoc(r)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE runs SET doc = $1 WHERE id = $2`, doc, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgRuns) ListByCollection(ctx context.Context, collectionID string, page Page) ([]models.Run, error) {
	limit, offset := pageClause(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM runs WHERE collection_id = $1
		ORDER BY started_at DESC LIMIT $2 OFFSET $3
	`, collectionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		var r models.Run
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, fmt.Errorf("failed to decode run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
