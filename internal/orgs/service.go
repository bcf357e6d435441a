// ABOUTME: Organization lifecycle service: create with rollback, read, update, delete, login
// ABOUTME: Also restores provisioner state for persisted organizations at startup

package orgs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/orgkeeper/internal/auth"
	"github.com/2389/orgkeeper/internal/credentials"
	"github.com/2389/orgkeeper/internal/metrics"
	"github.com/2389/orgkeeper/internal/provision"
	"github.com/2389/orgkeeper/internal/registry"
)

// DefaultStaleReservationAge is how old a reservation must be before Restore
// treats it as abandoned.
const DefaultStaleReservationAge = 10 * time.Minute

// restoreConcurrency bounds parallel namespace opens during Restore.
const restoreConcurrency = 8

// ErrValidation marks errors caused by bad input.
var ErrValidation = errors.New("validation failed")

// ValidationError is a user-facing input error. errors.Is matches both
// ErrValidation and the underlying cause, if any.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// Service implements the organization lifecycle.
type Service struct {
	creds       *credentials.Store
	registry    *registry.Registry
	provisioner *provision.Provisioner
	guard       *auth.Guard
	tokens      *auth.TokenIssuer

	requireOwnerForUpdate bool
	staleReservationAge   time.Duration
	now                   func() time.Time
	logger                *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithOwnerCheckOnUpdate makes Update require the caller to own the organization.
func WithOwnerCheckOnUpdate(enabled bool) Option {
	return func(s *Service) { s.requireOwnerForUpdate = enabled }
}

// WithStaleReservationAge sets the reservation age Restore purges.
func WithStaleReservationAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleReservationAge = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service.
func New(
	creds *credentials.Store,
	reg *registry.Registry,
	prov *provision.Provisioner,
	guard *auth.Guard,
	tokens *auth.TokenIssuer,
	opts ...Option,
) *Service {
	s := &Service{
		creds:               creds,
		registry:            reg,
		provisioner:         prov,
		guard:               guard,
		tokens:              tokens,
		staleReservationAge: DefaultStaleReservationAge,
		now:                 time.Now,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "orgs")
	return s
}

// OwnerCheckOnUpdate reports whether Update requires ownership.
func (s *Service) OwnerCheckOnUpdate() bool {
	return s.requireOwnerForUpdate
}

// Create registers a new organization with its admin and namespace.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Summary, err error) {
	defer func() { observe("create", err) }()

	name := registry.NormalizeName(req.Name)
	email := credentials.NormalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, invalid("provide organization_name, email, and password")
	}
	if err := registry.ValidateName(name); err != nil {
		return nil, validation(err)
	}
	if err := credentials.ValidateEmail(email); err != nil {
		return nil, validation(err)
	}
	if err := credentials.ValidatePassword(req.Password); err != nil {
		return nil, validation(err)
	}

	res, err := s.registry.Reserve(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := res.Release(ctx); rerr != nil {
			s.logger.Error("failed to release reservation", "name", name, "error", rerr)
		}
	}()

	admin, err := s.creds.Issue(ctx, email, req.Password)
	if err != nil {
		return nil, validation(err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := s.creds.Remove(context.WithoutCancel(ctx), admin.ID); rerr != nil {
			s.logger.Error("failed to remove admin during rollback", "admin_id", admin.ID, "error", rerr)
		}
	}()

	namespaceID := provision.NamespaceID(name)
	_, opened, err := s.provisioner.Provision(ctx, namespaceID, name)
	if errors.Is(err, provision.ErrInvalidNamespace) {
		return nil, &ValidationError{Msg: "organization name is too long for the storage backend", Err: err}
	}
	if err != nil {
		return nil, err
	}
	if opened {
		defer func() {
			if err == nil {
				return
			}
			if rerr := s.provisioner.Close(namespaceID); rerr != nil {
				s.logger.Error("failed to close namespace during rollback", "namespace", namespaceID, "error", rerr)
			}
		}()
	}

	org, err := res.Finalize(ctx, admin.ID, namespaceID)
	if err != nil {
		return nil, err
	}

	if err := s.creds.Link(ctx, admin.ID, org.ID); err != nil {
		// The row is active now, so Release will not drop it.
		if rerr := s.registry.Remove(context.WithoutCancel(ctx), name); rerr != nil {
			s.logger.Error("failed to remove organization during rollback", "name", name, "error", rerr)
		}
		return nil, fmt.Errorf("linking admin to organization: %w", err)
	}

	s.logger.Info("organization created", "name", name, "id", org.ID, "namespace", namespaceID)
	return &Summary{
		OrganizationID: org.ID,
		Name:           org.Name,
		NamespaceID:    org.NamespaceID,
		AdminEmail:     admin.Email,
		CreatedAt:      org.CreatedAt,
		UpdatedAt:      org.UpdatedAt,
	}, nil
}

// Get returns the organization with the given name.
func (s *Service) Get(ctx context.Context, name string) (*Summary, error) {
	org, err := s.registry.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	var email string
	admin, err := s.creds.Get(ctx, org.AdminID)
	switch {
	case err == nil:
		email = admin.Email
	case errors.Is(err, credentials.ErrNotFound):
		s.logger.Warn("organization owner missing", "name", org.Name, "admin_id", org.AdminID)
	default:
		return nil, err
	}

	return &Summary{
		OrganizationID: org.ID,
		Name:           org.Name,
		NamespaceID:    org.NamespaceID,
		AdminEmail:     email,
		CreatedAt:      org.CreatedAt,
		UpdatedAt:      org.UpdatedAt,
	}, nil
}

// Update changes the owner's email and/or password. id is the authenticated
// caller and may be nil unless the owner check is enabled.
func (s *Service) Update(ctx context.Context, id *auth.Identity, name string, req UpdateRequest) (_ *UpdateResult, err error) {
	defer func() { observe("update", err) }()

	email, password := blankToNil(req.Email), emptyToNil(req.Password)
	if email == nil && password == nil {
		return nil, validation(credentials.ErrNothingToUpdate)
	}

	org, err := s.registry.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	if s.requireOwnerForUpdate {
		if err := s.guard.AuthorizeOwner(id, org); err != nil {
			return nil, err
		}
	}

	admin, fields, err := s.creds.UpdateCredential(ctx, org.AdminID, email, password)
	if err != nil {
		return nil, validation(err)
	}

	touched, err := s.registry.TouchUpdated(ctx, org.Name)
	if err != nil {
		return nil, err
	}

	return &UpdateResult{
		Name:          touched.Name,
		AdminEmail:    admin.Email,
		UpdatedFields: fields,
		UpdatedAt:     touched.UpdatedAt,
	}, nil
}

// Delete removes an organization owned by id. The namespace handle is closed
// but its data is retained.
func (s *Service) Delete(ctx context.Context, id *auth.Identity, name string) (_ *DeletionRecord, err error) {
	defer func() { observe("delete", err) }()

	if id == nil {
		return nil, auth.ErrUnauthorized
	}

	org, err := s.registry.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := s.guard.AuthorizeOwner(id, org); err != nil {
		return nil, err
	}

	if err := s.provisioner.Close(org.NamespaceID); err != nil {
		s.logger.Warn("namespace did not close cleanly", "namespace", org.NamespaceID, "error", err)
	}

	if err := s.registry.Remove(ctx, org.Name); err != nil {
		return nil, err
	}

	if err := s.creds.Remove(ctx, org.AdminID); err != nil && !errors.Is(err, credentials.ErrNotFound) {
		s.logger.Error("organization removed but admin was not", "name", org.Name, "admin_id", org.AdminID, "error", err)
		return nil, err
	}

	s.logger.Info("organization deleted", "name", org.Name, "namespace", org.NamespaceID, "admin_id", org.AdminID)
	return &DeletionRecord{
		Name:        org.Name,
		NamespaceID: org.NamespaceID,
		DeletedAt:   s.now().UTC(),
	}, nil
}

// Login verifies admin credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (_ *LoginResult, err error) {
	defer func() { observe("login", err) }()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, invalid("provide email and password")
	}

	admin, err := s.creds.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{AdminID: admin.ID, Email: admin.Email}
	if admin.OrganizationID != "" {
		org, err := s.registry.LookupByID(ctx, admin.OrganizationID)
		switch {
		case err == nil:
			result.OrganizationID = org.ID
			result.OrganizationName = org.Name
		case errors.Is(err, registry.ErrNotFound):
		default:
			return nil, err
		}
	}

	token, expiresAt, err := s.tokens.Issue(admin.ID, admin.Email, result.OrganizationID)
	if err != nil {
		return nil, err
	}
	result.Token = token
	result.ExpiresAt = expiresAt

	s.logger.Info("admin logged in", "admin_id", admin.ID)
	return result, nil
}

// Restore prepares runtime state after a restart: it purges reservations
// abandoned by a crashed process and reopens the namespace of every active
// organization, so collision checks cover organizations created before the
// restart. A namespace that fails to open is logged and skipped.
func (s *Service) Restore(ctx context.Context) error {
	purged, err := s.registry.PurgeStaleReservations(ctx, s.staleReservationAge)
	if err != nil {
		return fmt.Errorf("purging stale reservations: %w", err)
	}

	orgs, err := s.registry.List(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(restoreConcurrency)
	for _, org := range orgs {
		g.Go(func() error {
			if _, err := s.provisioner.Open(gctx, org.NamespaceID, org.Name); err != nil {
				s.logger.Error("failed to reopen namespace", "name", org.Name, "namespace", org.NamespaceID, "error", err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("restoring namespaces: %w", err)
	}

	s.logger.Info("restored organizations",
		"organizations", len(orgs),
		"open_namespaces", s.provisioner.Len(),
		"purged_reservations", purged,
	)
	return nil
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

func emptyToNil(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

// validation tags input errors from lower layers with ErrValidation and passes
// everything else through.
func validation(err error) error {
	switch {
	case errors.Is(err, registry.ErrInvalidName),
		errors.Is(err, credentials.ErrInvalidEmail),
		errors.Is(err, credentials.ErrWeakPassword),
		errors.Is(err, credentials.ErrPasswordTooLong),
		errors.Is(err, credentials.ErrNothingToUpdate):
		return &ValidationError{Msg: err.Error(), Err: err}
	}
	return err
}

func observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.OrganizationOpsTotal.WithLabelValues(op, outcome).Inc()
}
