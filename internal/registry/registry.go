// ABOUTME: Organization registry with atomic name reservation and per-name locking
// ABOUTME: Wraps store.OrganizationStore with normalization, lookups, touch and removal

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/orgkeeper/internal/keylock"
	"github.com/2389/orgkeeper/internal/store"
)

// MaxNameLength bounds a normalized organization name in bytes.
const MaxNameLength = 128

var (
	// ErrNameTaken is returned when the normalized name is reserved or registered.
	ErrNameTaken = errors.New("organization name already exists")

	// ErrNotFound is returned when no active organization has the name.
	ErrNotFound = errors.New("organization not found")

	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("invalid organization name")

	// ErrNamespaceCollision is returned by Finalize when another organization
	// already owns the namespace id.
	ErrNamespaceCollision = errors.New("namespace collision")

	// ErrReservationLost is returned by Finalize when the placeholder row is gone.
	ErrReservationLost = errors.New("reservation no longer held")
)

// NormalizeName trims and lower-cases an organization name. The result is the
// registry key, so "Acme" and " acme " are the same organization.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks a normalized name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	return nil
}

// Registry maps organization names to their records.
type Registry struct {
	orgs   store.OrganizationStore
	locks  *keylock.Locker
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Registry over the given persistence.
func New(orgs store.OrganizationStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		orgs:   orgs,
		locks:  keylock.New(),
		now:    time.Now,
		logger: logger.With("component", "registry"),
	}
}

// Reserve atomically claims name for a pending create.
func (r *Registry) Reserve(ctx context.Context, name string) (*Reservation, error) {
	name = NormalizeName(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(name)
	defer unlock()

	now := r.now().UTC()
	org := &store.Organization{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.orgs.ReserveOrganization(ctx, org); err != nil {
		if errors.Is(err, store.ErrOrganizationExists) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("reserving organization: %w", err)
	}

	r.logger.Debug("reserved organization name", "name", name, "id", org.ID)
	return &Reservation{registry: r, org: org}, nil
}

// Lookup returns the active organization with the given name.
func (r *Registry) Lookup(ctx context.Context, name string) (*store.Organization, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, ErrNotFound
	}
	org, err := r.orgs.GetOrganizationByName(ctx, name)
	return activeOnly(org, err)
}

// LookupByID returns the active organization with the given ID.
func (r *Registry) LookupByID(ctx context.Context, id string) (*store.Organization, error) {
	org, err := r.orgs.GetOrganization(ctx, id)
	return activeOnly(org, err)
}

// LookupByNamespace returns the active organization bound to a namespace id.
func (r *Registry) LookupByNamespace(ctx context.Context, namespaceID string) (*store.Organization, error) {
	org, err := r.orgs.GetOrganizationByNamespace(ctx, namespaceID)
	return activeOnly(org, err)
}

// List returns all active organizations.
func (r *Registry) List(ctx context.Context) ([]*store.Organization, error) {
	orgs, err := r.orgs.ListOrganizations(ctx, store.OrganizationStatusActive)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	return orgs, nil
}

// Remove deletes the active organization with the given name.
func (r *Registry) Remove(ctx context.Context, name string) error {
	name = NormalizeName(name)
	unlock := r.locks.Lock(name)
	defer unlock()

	org, err := r.Lookup(ctx, name)
	if err != nil {
		return err
	}

	if err := r.orgs.DeleteOrganization(ctx, org.ID); err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("removing organization: %w", err)
	}

	r.logger.Info("removed organization", "name", name, "id", org.ID)
	return nil
}

// TouchUpdated refreshes the organization's update timestamp. Identity fields
// (name, namespace, owner) are not modified.
func (r *Registry) TouchUpdated(ctx context.Context, name string) (*store.Organization, error) {
	name = NormalizeName(name)
	unlock := r.locks.Lock(name)
	defer unlock()

	org, err := r.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if err := r.orgs.TouchOrganization(ctx, org.ID, now); err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("touching organization: %w", err)
	}

	org.UpdatedAt = now
	return org, nil
}

// PurgeStaleReservations drops placeholders older than maxAge, left behind by a
// process that died between Reserve and Finalize/Release.
func (r *Registry) PurgeStaleReservations(ctx context.Context, maxAge time.Duration) (int64, error) {
	return r.orgs.DeleteStaleReservations(ctx, r.now().Add(-maxAge))
}

func activeOnly(org *store.Organization, err error) (*store.Organization, error) {
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("looking up organization: %w", err)
	}
	if org.Status != store.OrganizationStatusActive {
		return nil, ErrNotFound
	}
	return org, nil
}

// Reservation is a claimed name awaiting Finalize or Release.
type Reservation struct {
	registry *Registry
	org      *store.Organization

	mu        sync.Mutex
	finalized bool
	released  bool
}

// ID returns the organization ID assigned at reservation time.
func (res *Reservation) ID() string { return res.org.ID }

// Name returns the normalized name held by this reservation.
func (res *Reservation) Name() string { return res.org.Name }

// Finalize completes the record with its owner and namespace.
func (res *Reservation) Finalize(ctx context.Context, ownerID, namespaceID string) (*store.Organization, error) {
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.finalized {
		org := *res.org
		return &org, nil
	}
	if res.released {
		return nil, ErrReservationLost
	}

	r := res.registry
	now := r.now().UTC()
	if err := r.orgs.ActivateOrganization(ctx, res.org.ID, ownerID, namespaceID, now); err != nil {
		switch {
		case errors.Is(err, store.ErrNamespaceExists):
			return nil, ErrNamespaceCollision
		case errors.Is(err, store.ErrOrganizationNotFound):
			return nil, ErrReservationLost
		}
		return nil, fmt.Errorf("finalizing organization: %w", err)
	}

	res.finalized = true
	res.org.AdminID = ownerID
	res.org.NamespaceID = namespaceID
	res.org.Status = store.OrganizationStatusActive
	res.org.UpdatedAt = now

	r.logger.Info("registered organization", "name", res.org.Name, "id", res.org.ID, "namespace", namespaceID)
	org := *res.org
	return &org, nil
}

// Release drops the claim if it was not finalized. It is idempotent and runs
// even when ctx is already canceled, so it is safe to defer.
func (res *Reservation) Release(ctx context.Context) error {
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.finalized || res.released {
		return nil
	}

	r := res.registry
	removed, err := r.orgs.DeleteReservation(context.WithoutCancel(ctx), res.org.ID)
	if err != nil {
		return fmt.Errorf("releasing reservation: %w", err)
	}

	res.released = true
	if removed {
		r.logger.Debug("released organization reservation", "name", res.org.Name, "id", res.org.ID)
	}
	return nil
}
