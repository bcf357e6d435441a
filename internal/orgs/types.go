// ABOUTME: Request and result types of the organization lifecycle service
// ABOUTME: Plain data carried between the HTTP layer and the service

package orgs

import "time"

// CreateRequest carries the fields of a new organization.
type CreateRequest struct {
	Name     string
	Email    string
	Password string
}

// UpdateRequest carries the admin credential fields to change. A nil or blank
// field is left as is.
type UpdateRequest struct {
	Email    *string
	Password *string
}

// Summary is the public view of an organization.
type Summary struct {
	OrganizationID string
	Name           string
	NamespaceID    string
	AdminEmail     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpdateResult reports a credential update.
type UpdateResult struct {
	Name          string
	AdminEmail    string
	UpdatedFields []string
	UpdatedAt     time.Time
}

// DeletionRecord reports a deleted organization.
type DeletionRecord struct {
	Name        string
	NamespaceID string
	DeletedAt   time.Time
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token            string
	ExpiresAt        time.Time
	AdminID          string
	Email            string
	OrganizationID   string
	OrganizationName string
}
