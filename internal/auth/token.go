// ABOUTME: JWT issuing and verification for admin credential tokens
// ABOUTME: HS256 with sub/email/org claims; every failure is ErrInvalidToken

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// DefaultTokenExpiry is used when no expiry is configured.
const DefaultTokenExpiry = 24 * time.Hour

// Token errors
var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrSecretTooShort = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// Claims is the payload of an admin token.
type Claims struct {
	Email          string `json:"email"`
	OrganizationID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies admin tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. A non-positive expiry selects
// DefaultTokenExpiry.
func NewTokenIssuer(secret []byte, expiry time.Duration) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &TokenIssuer{secret: secret, expiry: expiry, now: time.Now}, nil
}

// Expiry returns the lifetime of issued tokens.
func (i *TokenIssuer) Expiry() time.Duration {
	return i.expiry
}

// Issue signs a token for an admin. orgID may be empty.
func (i *TokenIssuer) Issue(adminID, email, orgID string) (string, time.Time, error) {
	if adminID == "" {
		return "", time.Time{}, errors.New("admin id is required")
	}

	now := i.now()
	expiresAt := now.Add(i.expiry)
	claims := Claims{
		Email:          email,
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates the token and returns its claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return claims, nil
}
