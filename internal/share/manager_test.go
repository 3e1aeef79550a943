package share

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-runner/internal/store"
)

func TestIssueDefaults(t *testing.T) {
	records := store.NewMemory()
	m := NewManager(records.Shares, 0)

	s, err := m.Issue(context.Background(), "col-1", nil, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "col-1", s.CollectionID)
	assert.Equal(t, []string{"view"}, s.Permissions)
	assert.Equal(t, 0, s.AccessCount)
}

func TestTokensAreUnique(t *testing.T) {
	records := store.NewMemory()
	m := NewManager(records.Shares, 32)

	a, err := m.Issue(context.Background(), "col-1", nil, Options{})
	require.NoError(t, err)
	b, err := m.Issue(context.Background(), "col-1", nil, Options{})
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
}

func TestValidateConsumesAccess(t *testing.T) {
	records := store.NewMemory()
	m := NewManager(records.Shares, 32)

	s, err := m.Issue(context.Background(), "col-1", []string{"view"}, Options{MaxAccess: 1})
	require.NoError(t, err)

	first, err := m.Validate(context.Background(), s.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AccessCount)

	_, err = m.Validate(context.Background(), s.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The exhausted record is still there, just no longer valid.
	stored, err := records.Shares.Get(context.Background(), s.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AccessCount)
}

func TestValidateExpired(t *testing.T) {
	records := store.NewMemory()
	m := NewManager(records.Shares, 32)

	past := time.Now().Add(-time.Minute)
	s, err := m.Issue(context.Background(), "col-1", nil, Options{ExpiresAt: &past})
	require.NoError(t, err)

	_, err = m.Validate(context.Background(), s.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestValidateUnboundedShare(t *testing.T) {
	records := store.NewMemory()
	m := NewManager(records.Shares, 32)

	s, err := m.Issue(context.Background(), "col-1", nil, Options{})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		got, err := m.Validate(context.Background(), s.Token)
		require.NoError(t, err)
		assert.Equal(t, i, got.AccessCount)
	}
}

func TestRevoke(t *testing.T) {
	records := store.NewMemory()
	m := NewManager(records.Shares, 32)

	s, err := m.Issue(context.Background(), "col-1", nil, Options{})
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), s.Token))

	_, err = m.Validate(context.Background(), s.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestValidateUnknownToken(t *testing.T) {
	records := store.NewMemory()
	m := NewManager(records.Shares, 32)

	_, err := m.Validate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
