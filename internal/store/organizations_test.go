// ABOUTME: Tests for organization registry persistence
// ABOUTME: Covers reservation, activation, namespace uniqueness, touch, and stale purge

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserveTestOrg(t *testing.T, s *SQLiteStore, id, name string) *Organization {
	t.Helper()
	now := time.Now().UTC()
	org := &Organization{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.ReserveOrganization(context.Background(), org))
	return org
}

func TestOrganizationStore_ReserveAndActivate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	org := reserveTestOrg(t, s, "org-1", "acme")
	assert.Equal(t, OrganizationStatusReserved, org.Status)

	got, err := s.GetOrganizationByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, OrganizationStatusReserved, got.Status)
	assert.Empty(t, got.NamespaceID)
	assert.Empty(t, got.AdminID)

	require.NoError(t, s.ActivateOrganization(ctx, "org-1", "admin-1", "org_acme", time.Now()))

	got, err = s.GetOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, OrganizationStatusActive, got.Status)
	assert.Equal(t, "org_acme", got.NamespaceID)
	assert.Equal(t, "admin-1", got.AdminID)

	byNS, err := s.GetOrganizationByNamespace(ctx, "org_acme")
	require.NoError(t, err)
	assert.Equal(t, "org-1", byNS.ID)
}

func TestOrganizationStore_ReserveDuplicateName(t *testing.T) {
	s := setupTestStore(t)

	reserveTestOrg(t, s, "org-1", "acme")

	now := time.Now()
	err := s.ReserveOrganization(context.Background(), &Organization{ID: "org-2", Name: "acme", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, ErrOrganizationExists)
}

func TestOrganizationStore_ActivateNamespaceCollision(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	require.NoError(t, s.CreateAdmin(ctx, newTestAdmin("admin-2", "b@acme.com")))
	reserveTestOrg(t, s, "org-1", "test company!")
	reserveTestOrg(t, s, "org-2", "test_company_")

	require.NoError(t, s.ActivateOrganization(ctx, "org-1", "admin-1", "org_test_company_", time.Now()))
	err := s.ActivateOrganization(ctx, "org-2", "admin-2", "org_test_company_", time.Now())
	assert.ErrorIs(t, err, ErrNamespaceExists)
}

func TestOrganizationStore_ActivateTwice(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	reserveTestOrg(t, s, "org-1", "acme")

	require.NoError(t, s.ActivateOrganization(ctx, "org-1", "admin-1", "org_acme", time.Now()))
	err := s.ActivateOrganization(ctx, "org-1", "admin-1", "org_acme", time.Now())
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestOrganizationStore_DeleteReservationLeavesActiveRows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	reserveTestOrg(t, s, "org-1", "acme")
	reserveTestOrg(t, s, "org-2", "globex")
	require.NoError(t, s.ActivateOrganization(ctx, "org-1", "admin-1", "org_acme", time.Now()))

	removed, err := s.DeleteReservation(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, removed, "active row must survive")

	removed, err = s.DeleteReservation(ctx, "org-2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteReservation(ctx, "org-2")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.GetOrganization(ctx, "org-1")
	assert.NoError(t, err)
}

func TestOrganizationStore_Touch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	org := reserveTestOrg(t, s, "org-1", "acme")

	// Reserved rows cannot be touched.
	assert.ErrorIs(t, s.TouchOrganization(ctx, "org-1", time.Now()), ErrOrganizationNotFound)

	require.NoError(t, s.ActivateOrganization(ctx, "org-1", "admin-1", "org_acme", org.CreatedAt))

	later := org.CreatedAt.Add(time.Hour)
	require.NoError(t, s.TouchOrganization(ctx, "org-1", later))

	got, err := s.GetOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later.UTC()))
	assert.Equal(t, "acme", got.Name)
	assert.Equal(t, "org_acme", got.NamespaceID)
}

func TestOrganizationStore_ListAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAdmin(ctx, newTestAdmin("admin-1", "a@acme.com")))
	reserveTestOrg(t, s, "org-1", "acme")
	reserveTestOrg(t, s, "org-2", "globex")
	require.NoError(t, s.ActivateOrganization(ctx, "org-1", "admin-1", "org_acme", time.Now()))

	all, err := s.ListOrganizations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.ListOrganizations(ctx, OrganizationStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "acme", active[0].Name)

	require.NoError(t, s.DeleteOrganization(ctx, "org-1"))
	assert.ErrorIs(t, s.DeleteOrganization(ctx, "org-1"), ErrOrganizationNotFound)
}

func TestOrganizationStore_DeleteStaleReservations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.ReserveOrganization(ctx, &Organization{ID: "org-old", Name: "old", CreatedAt: old, UpdatedAt: old}))
	reserveTestOrg(t, s, "org-new", "new")

	n, err := s.DeleteStaleReservations(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetOrganization(ctx, "org-old")
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
	_, err = s.GetOrganization(ctx, "org-new")
	assert.NoError(t, err)
}
