// ABOUTME: Store interfaces and data types for orgkeeper control-plane persistence
// ABOUTME: Defines Admin and Organization records plus the AdminStore/OrganizationStore contracts

package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAdminNotFound is returned when an admin identity does not exist.
	ErrAdminNotFound = errors.New("admin not found")

	// ErrEmailExists is returned when an email is already bound to another admin.
	ErrEmailExists = errors.New("email already exists")

	// ErrOrganizationNotFound is returned when an organization row does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrOrganizationExists is returned when the normalized name is already taken.
	ErrOrganizationExists = errors.New("organization already exists")

	// ErrNamespaceExists is returned when the namespace id is already bound.
	ErrNamespaceExists = errors.New("namespace already exists")
)

// OrganizationStatus is the lifecycle state of an organization row.
type OrganizationStatus string

const (
	// OrganizationStatusReserved marks a placeholder claimed before provisioning.
	OrganizationStatusReserved OrganizationStatus = "reserved"
	// OrganizationStatusActive marks a fully provisioned organization.
	OrganizationStatusActive OrganizationStatus = "active"
)

// Admin is the single identity allowed to manage one organization.
type Admin struct {
	ID             string
	Email          string
	PasswordHash   string // bcrypt, never serialized outward
	OrganizationID string // empty until linked
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Organization is a registry row.
type Organization struct {
	ID          string
	Name        string // normalized: trimmed, lower-cased
	NamespaceID string // empty while reserved
	AdminID     string // empty while reserved
	Status      OrganizationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AdminStore persists admin identities.
type AdminStore interface {
	CreateAdmin(ctx context.Context, admin *Admin) error
	GetAdmin(ctx context.Context, id string) (*Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	UpdateAdmin(ctx context.Context, admin *Admin) error
	DeleteAdmin(ctx context.Context, id string) error
}

// OrganizationStore persists the organization registry.
type OrganizationStore interface {
	ReserveOrganization(ctx context.Context, org *Organization) error
	ActivateOrganization(ctx context.Context, id, adminID, namespaceID string, at time.Time) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*Organization, error)
	GetOrganizationByNamespace(ctx context.Context, namespaceID string) (*Organization, error)
	ListOrganizations(ctx context.Context, status OrganizationStatus) ([]*Organization, error)
	TouchOrganization(ctx context.Context, id string, at time.Time) error
	DeleteOrganization(ctx context.Context, id string) error
	DeleteReservation(ctx context.Context, id string) (bool, error)
	DeleteStaleReservations(ctx context.Context, before time.Time) (int64, error)
}
