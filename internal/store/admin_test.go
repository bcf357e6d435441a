// ABOUTME: Tests for admin identity persistence
// ABOUTME: Covers create, lookup by id/email, update, delete, and email uniqueness

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(id, email string) *Admin {
	now := time.Now().UTC()
	return &Admin{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$10$hash-" + id,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAdminStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	admin := newTestAdmin("admin-1", "owner@acme.com")
	require.NoError(t, store.CreateAdmin(ctx, admin))

	got, err := store.GetAdmin(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.com", got.Email)
	assert.Equal(t, admin.PasswordHash, got.PasswordHash)
	assert.Empty(t, got.OrganizationID)
	assert.WithinDuration(t, admin.CreatedAt, got.CreatedAt, time.Microsecond)

	byEmail, err := store.GetAdminByEmail(ctx, "owner@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", byEmail.ID)
}

func TestAdminStore_DuplicateEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAdmin(ctx, newTestAdmin("admin-1", "dup@acme.com")))

	err := store.CreateAdmin(ctx, newTestAdmin("admin-2", "dup@acme.com"))
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAdminStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetAdmin(ctx, "nope")
	assert.ErrorIs(t, err, ErrAdminNotFound)

	_, err = store.GetAdminByEmail(ctx, "nope@acme.com")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestAdminStore_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	admin := newTestAdmin("admin-1", "old@acme.com")
	require.NoError(t, store.CreateAdmin(ctx, admin))

	admin.Email = "new@acme.com"
	admin.PasswordHash = "$2a$10$other"
	admin.OrganizationID = "org-1"
	admin.UpdatedAt = admin.UpdatedAt.Add(time.Minute)
	require.NoError(t, store.UpdateAdmin(ctx, admin))

	got, err := store.GetAdmin(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "new@acme.com", got.Email)
	assert.Equal(t, "$2a$10$other", got.PasswordHash)
	assert.Equal(t, "org-1", got.OrganizationID)

	_, err = store.GetAdminByEmail(ctx, "old@acme.com")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestAdminStore_UpdateToTakenEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	second := newTestAdmin("admin-2", "b@acme.com")
	require.NoError(t, store.CreateAdmin(ctx, second))

	second.Email = "a@acme.com"
	assert.ErrorIs(t, store.UpdateAdmin(ctx, second), ErrEmailExists)
}

func TestAdminStore_UpdateMissing(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateAdmin(context.Background(), newTestAdmin("ghost", "ghost@acme.com"))
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestAdminStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	require.NoError(t, store.DeleteAdmin(ctx, "admin-1"))

	_, err := store.GetAdmin(ctx, "admin-1")
	assert.ErrorIs(t, err, ErrAdminNotFound)

	assert.ErrorIs(t, store.DeleteAdmin(ctx, "admin-1"), ErrAdminNotFound)
}
