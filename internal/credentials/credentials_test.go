// ABOUTME: Tests for the admin credential store
// ABOUTME: Covers issue/verify, anti-enumeration, credential updates, and removal

package credentials

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/orgkeeper/internal/store"
)

func newTestCredentials(t *testing.T) (*Store, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(db, WithBcryptCost(bcrypt.MinCost)), db
}

func strPtr(s string) *string { return &s }

func TestIssue_NormalizesAndHashes(t *testing.T) {
	creds, db := newTestCredentials(t)
	ctx := context.Background()

	admin, err := creds.Issue(ctx, "  Owner@Acme.COM ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.com", admin.Email)
	assert.NotEqual(t, "secret1", admin.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("secret1")))

	stored, err := db.GetAdminByEmail(ctx, "owner@acme.com")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, stored.ID)
}

func TestIssue_DuplicateEmail(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	_, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = creds.Issue(ctx, "A@X.com", "secret2")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestIssue_Validation(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"empty email", "  ", "secret1", ErrInvalidEmail},
		{"malformed email", "not-an-email", "secret1", ErrInvalidEmail},
		{"display name form", "Bob <bob@x.com>", "secret1", ErrInvalidEmail},
		{"short password", "a@x.com", "12345", ErrWeakPassword},
		{"long password", "a@x.com", strings.Repeat("p", 73), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := creds.Issue(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerify(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	issued, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	got, err := creds.Verify(ctx, " A@X.COM", "secret1")
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
}

func TestVerify_UniformFailure(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	_, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, wrongPassword := creds.Verify(ctx, "a@x.com", "wrong-password")
	_, unknownEmail := creds.Verify(ctx, "nobody@x.com", "secret1")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestDummyHashMatchesCost(t *testing.T) {
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 1} {
		creds := New(db, WithBcryptCost(cost))

		got, err := bcrypt.Cost(creds.dummyHash)
		require.NoError(t, err)
		assert.Equal(t, cost, got)

		_, err = creds.Verify(ctx, "nobody@x.com", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestUpdateCredential_RequiresAField(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	admin, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, err = creds.UpdateCredential(ctx, admin.ID, nil, nil)
	assert.ErrorIs(t, err, ErrNothingToUpdate)
}

func TestUpdateCredential_EmailAndPassword(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	admin, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	updated, fields, err := creds.UpdateCredential(ctx, admin.ID, strPtr("New@X.com"), strPtr("secret2"))
	require.NoError(t, err)
	assert.Equal(t, []string{FieldEmail, FieldPassword}, fields)
	assert.Equal(t, "new@x.com", updated.Email)

	_, err = creds.Verify(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := creds.Verify(ctx, "new@x.com", "secret2")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)
}

func TestUpdateCredential_SameEmailIsNotAnUpdate(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	admin, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, fields, err := creds.UpdateCredential(ctx, admin.ID, strPtr("A@x.com"), nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestUpdateCredential_DuplicateEmail(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	_, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	b, err := creds.Issue(ctx, "b@x.com", "secret1")
	require.NoError(t, err)

	_, _, err = creds.UpdateCredential(ctx, b.ID, strPtr("a@x.com"), nil)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	// Unchanged.
	got, err := creds.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", got.Email)
}

func TestUpdateCredential_UnknownAdmin(t *testing.T) {
	creds, _ := newTestCredentials(t)

	_, _, err := creds.UpdateCredential(context.Background(), "ghost", nil, strPtr("secret2"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkAndRemove(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()

	admin, err := creds.Issue(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, creds.Link(ctx, admin.ID, "org-1"))
	got, err := creds.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "org-1", got.OrganizationID)

	require.NoError(t, creds.Remove(ctx, admin.ID))
	_, err = creds.Get(ctx, admin.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, creds.Remove(ctx, admin.ID), ErrNotFound)

	_, err = creds.Verify(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
