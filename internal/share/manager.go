// Package share issues and validates capability tokens granting scoped access
// to a collection. Validation consumes one access unit: an expired, exhausted
// or revoked token is indistinguishable from a missing one.
package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"collection-runner/internal/models"
	"collection-runner/internal/store"
)

const DefaultTokenBytes = 32

// Options bounds a share at issue time. Zero values mean unbounded.
type Options struct {
	ExpiresAt *time.Time
	MaxAccess int
}

type Manager struct {
	shares     store.ShareStore
	tokenBytes int
}

func NewManager(shares store.ShareStore, tokenBytes int) *Manager {
	if tokenBytes <= 0 {
		tokenBytes = DefaultTokenBytes
	}
	return &Manager{shares: shares, tokenBytes: tokenBytes}
}

// Issue creates a share with a token drawn from crypto/rand.
func (m *Manager) Issue(ctx context.Context, collectionID string, permissions []string, opts Options) (*models.Share, error) {
	token, err := m.newToken()
	if err != nil {
		return nil, err
	}
	if len(permissions) == 0 {
		permissions = []string{"view"}
	}

	s := &models.Share{
		Token:        token,
		CollectionID: collectionID,
		Permissions:  permissions,
		ExpiresAt:    opts.ExpiresAt,
		MaxAccess:    opts.MaxAccess,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.shares.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to store share: %w", err)
	}
	return s, nil
}

// Validate resolves a token and consumes one access unit. Invalid shares
// (expired, exhausted, revoked) surface as store.ErrNotFound; their records
// stay in place unless explicitly revoked.
func (m *Manager) Validate(ctx context.Context, token string) (*models.Share, error) {
	s, err := m.shares.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.Revoked {
		return nil, store.ErrNotFound
	}
	if s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	if s.MaxAccess > 0 && s.AccessCount >= s.MaxAccess {
		return nil, store.ErrNotFound
	}

	s.AccessCount++
	if err := m.shares.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to record share access: %w", err)
	}
	return s, nil
}

// Revoke marks a share invalid without deleting its record.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	s, err := m.shares.Get(ctx, token)
	if err != nil {
		return err
	}
	s.Revoked = true
	return m.shares.Update(ctx, s)
}

func (m *Manager) newToken() (string, error) {
	buf := make([]byte, m.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
