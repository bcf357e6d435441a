// ABOUTME: Credential store for admin identities backed by store.AdminStore
// ABOUTME: Normalizes emails, hashes passwords with bcrypt, and verifies without user enumeration

package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/orgkeeper/internal/store"
)

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

var (
	// ErrDuplicateEmail is returned when the email belongs to another admin.
	ErrDuplicateEmail = errors.New("email is already registered")

	// ErrInvalidCredentials is returned by Verify for any authentication failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidEmail is returned when an email is empty or malformed.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrWeakPassword is returned when a password is shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password must be at least 6 characters")

	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordLength bytes.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

	// ErrNothingToUpdate is returned when UpdateCredential gets neither field.
	ErrNothingToUpdate = errors.New("provide email or password to update")

	// ErrNotFound is returned when the admin identity does not exist.
	ErrNotFound = errors.New("admin not found")
)

// Field names reported by UpdateCredential.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// Store issues, verifies, updates and removes admin identities.
type Store struct {
	admins store.AdminStore
	cost   int
	now    func() time.Time
	logger *slog.Logger

	// dummyHash is compared against when the email is unknown. It is hashed at
	// the store's cost so both failure paths spend the same bcrypt time.
	dummyHash []byte
}

// Option configures a Store.
type Option func(*Store)

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a credential Store over the given admin persistence.
func New(admins store.AdminStore, opts ...Option) *Store {
	s := &Store{
		admins: admins,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "credentials")

	hash, err := bcrypt.GenerateFromPassword([]byte("orgkeeper-unknown-admin"), s.cost)
	if err != nil {
		s.logger.Error("failed to generate dummy hash", "cost", s.cost, "error", err)
	}
	s.dummyHash = hash
	return s
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that a normalized email is present and well formed.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// ValidatePassword checks the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// Issue creates a new admin identity. The plaintext password is not retained.
func (s *Store) Issue(ctx context.Context, email, password string) (*store.Admin, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.admins.GetAdminByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrAdminNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	admin := &store.Admin{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The UNIQUE constraint settles races the pre-check cannot see.
	if err := s.admins.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("creating admin: %w", err)
	}

	s.logger.Info("issued admin identity", "admin_id", admin.ID)
	return admin, nil
}

// Verify authenticates an email/password pair.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Store) Verify(ctx context.Context, email, password string) (*store.Admin, error) {
	admin, err := s.admins.GetAdminByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("password mismatch", "admin_id", admin.ID)
		return nil, ErrInvalidCredentials
	}

	return admin, nil
}

// Get returns the admin identity with the given ID.
func (s *Store) Get(ctx context.Context, adminID string) (*store.Admin, error) {
	admin, err := s.admins.GetAdmin(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting admin: %w", err)
	}
	return admin, nil
}

// Link records the organization an admin owns.
func (s *Store) Link(ctx context.Context, adminID, organizationID string) error {
	admin, err := s.Get(ctx, adminID)
	if err != nil {
		return err
	}
	admin.OrganizationID = organizationID
	admin.UpdatedAt = s.now().UTC()
	if err := s.admins.UpdateAdmin(ctx, admin); err != nil {
		return fmt.Errorf("linking admin: %w", err)
	}
	return nil
}

// UpdateCredential changes an admin's email and/or password.
// At least one of newEmail and newPassword must be non-nil. It returns the
// updated admin and the names of the fields that actually changed.
func (s *Store) UpdateCredential(ctx context.Context, adminID string, newEmail, newPassword *string) (*store.Admin, []string, error) {
	if newEmail == nil && newPassword == nil {
		return nil, nil, ErrNothingToUpdate
	}

	var email string
	if newEmail != nil {
		email = NormalizeEmail(*newEmail)
		if err := ValidateEmail(email); err != nil {
			return nil, nil, err
		}
	}
	if newPassword != nil {
		if err := ValidatePassword(*newPassword); err != nil {
			return nil, nil, err
		}
	}

	admin, err := s.Get(ctx, adminID)
	if err != nil {
		return nil, nil, err
	}

	updated := []string{}

	if newEmail != nil && email != admin.Email {
		other, err := s.admins.GetAdminByEmail(ctx, email)
		switch {
		case err == nil && other.ID != admin.ID:
			return nil, nil, ErrDuplicateEmail
		case err != nil && !errors.Is(err, store.ErrAdminNotFound):
			return nil, nil, fmt.Errorf("checking email: %w", err)
		}
		admin.Email = email
		updated = append(updated, FieldEmail)
	}

	if newPassword != nil {
		hash, err := s.hash(*newPassword)
		if err != nil {
			return nil, nil, err
		}
		admin.PasswordHash = hash
		updated = append(updated, FieldPassword)
	}

	if len(updated) == 0 {
		return admin, updated, nil
	}

	admin.UpdatedAt = s.now().UTC()
	if err := s.admins.UpdateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, nil, ErrDuplicateEmail
		}
		if errors.Is(err, store.ErrAdminNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("updating admin: %w", err)
	}

	s.logger.Info("updated admin credential", "admin_id", admin.ID, "fields", updated)
	return admin, updated, nil
}

// Remove deletes an admin identity. Irreversible.
func (s *Store) Remove(ctx context.Context, adminID string) error {
	if err := s.admins.DeleteAdmin(ctx, adminID); err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("removing admin: %w", err)
	}
	s.logger.Info("removed admin identity", "admin_id", adminID)
	return nil
}

func (s *Store) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
