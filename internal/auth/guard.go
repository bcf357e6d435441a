// ABOUTME: Authorization guard: bearer token authentication and ownership checks
// ABOUTME: Maps failures to ErrUnauthorized, ErrInvalidToken and ErrForbidden

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/orgkeeper/internal/credentials"
	"github.com/2389/orgkeeper/internal/store"
)

// Guard errors
var (
	ErrUnauthorized = errors.New("not authorized to access this route")
	ErrForbidden    = errors.New("access denied: you can only manage your own organization")
)

// AdminLookup resolves a token subject to a live admin. It returns
// credentials.ErrNotFound for unknown ids.
type AdminLookup interface {
	Get(ctx context.Context, adminID string) (*store.Admin, error)
}

// Guard authenticates bearer tokens and checks tenant ownership.
type Guard struct {
	tokens *TokenIssuer
	admins AdminLookup
	logger *slog.Logger
}

// NewGuard creates a Guard.
func NewGuard(tokens *TokenIssuer, admins AdminLookup, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		tokens: tokens,
		admins: admins,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate resolves the Authorization header value to an Identity.
func (g *Guard) Authenticate(ctx context.Context, authHeader string) (*Identity, error) {
	token, err := ExtractBearerToken(authHeader)
	if err != nil {
		return nil, err
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		g.logger.Debug("token rejected", "error", err)
		return nil, ErrInvalidToken
	}

	admin, err := g.admins.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			g.logger.Debug("token subject no longer exists", "admin_id", claims.Subject)
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolving token subject: %w", err)
	}

	return &Identity{
		AdminID:        admin.ID,
		Email:          admin.Email,
		OrganizationID: admin.OrganizationID,
	}, nil
}

// AuthorizeOwner allows id only if it is the owner of org.
func (g *Guard) AuthorizeOwner(id *Identity, org *store.Organization) error {
	if id == nil {
		return ErrUnauthorized
	}
	if org == nil || org.AdminID == "" || id.AdminID != org.AdminID {
		g.logger.Warn("ownership check failed", "admin_id", id.AdminID, "organization", orgName(org))
		return ErrForbidden
	}
	return nil
}

func orgName(org *store.Organization) string {
	if org == nil {
		return ""
	}
	return org.Name
}
