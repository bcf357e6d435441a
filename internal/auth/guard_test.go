// ABOUTME: Tests for the authorization guard
// ABOUTME: Walks the unauthenticated -> authorized state machine against a real credential store

package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/orgkeeper/internal/credentials"
	"github.com/2389/orgkeeper/internal/store"
)

type guardFixture struct {
	guard  *Guard
	tokens *TokenIssuer
	creds  *credentials.Store
}

func setupGuard(t *testing.T) *guardFixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	creds := credentials.New(s, credentials.WithBcryptCost(bcrypt.MinCost))
	tokens := newTestIssuer(t)
	return &guardFixture{
		guard:  NewGuard(tokens, creds, nil),
		tokens: tokens,
		creds:  creds,
	}
}

func TestGuard_Authenticate(t *testing.T) {
	f := setupGuard(t)
	ctx := context.Background()

	admin, err := f.creds.Issue(ctx, "owner@acme.com", "secret1")
	require.NoError(t, err)
	token, _, err := f.tokens.Issue(admin.ID, admin.Email, "")
	require.NoError(t, err)

	id, err := f.guard.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, id.AdminID)
	assert.Equal(t, "owner@acme.com", id.Email)
}

func TestGuard_Authenticate_Failures(t *testing.T) {
	f := setupGuard(t)
	ctx := context.Background()

	ghost, _, err := f.tokens.Issue("no-such-admin", "ghost@acme.com", "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing header", "", ErrUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ErrUnauthorized},
		{"empty bearer", "Bearer ", ErrUnauthorized},
		{"no space", "Bearer", ErrUnauthorized},
		{"garbage token", "Bearer garbage", ErrInvalidToken},
		{"deleted subject", "Bearer " + ghost, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.guard.Authenticate(ctx, tt.header)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGuard_Authenticate_UsesLiveRecord(t *testing.T) {
	f := setupGuard(t)
	ctx := context.Background()

	admin, err := f.creds.Issue(ctx, "old@acme.com", "secret1")
	require.NoError(t, err)
	token, _, err := f.tokens.Issue(admin.ID, admin.Email, "")
	require.NoError(t, err)

	newEmail := "new@acme.com"
	_, _, err = f.creds.UpdateCredential(ctx, admin.ID, &newEmail, nil)
	require.NoError(t, err)
	require.NoError(t, f.creds.Link(ctx, admin.ID, "org-1"))

	id, err := f.guard.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "new@acme.com", id.Email)
	assert.Equal(t, "org-1", id.OrganizationID)
}

func TestGuard_AuthorizeOwner(t *testing.T) {
	f := setupGuard(t)
	org := &store.Organization{ID: "org-1", Name: "acme", AdminID: "admin-1"}

	assert.NoError(t, f.guard.AuthorizeOwner(&Identity{AdminID: "admin-1"}, org))
	assert.ErrorIs(t, f.guard.AuthorizeOwner(&Identity{AdminID: "admin-2"}, org), ErrForbidden)
	assert.ErrorIs(t, f.guard.AuthorizeOwner(nil, org), ErrUnauthorized)
	assert.ErrorIs(t, f.guard.AuthorizeOwner(&Identity{AdminID: ""}, &store.Organization{Name: "reserved"}), ErrForbidden)
}
