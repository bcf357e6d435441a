// ABOUTME: HTTP middleware for bearer authentication on guarded endpoints
// ABOUTME: Extracts the JWT from the Authorization header and adds the Identity to context

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ExtractBearerToken extracts a bearer token from an Authorization header value.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrUnauthorized
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnauthorized
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

// DenyFunc writes the response for a request that failed authentication.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// RequireAdmin creates an HTTP middleware that authenticates the request with
// guard and stores the Identity in its context. Failures go to deny.
func RequireAdmin(guard *Guard, deny DenyFunc) func(http.Handler) http.Handler {
	if deny == nil {
		deny = defaultDeny
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := guard.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func defaultDeny(w http.ResponseWriter, _ *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Server Error"
	switch {
	case errors.Is(err, ErrInvalidToken):
		status, msg = http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "Not authorized to access this route"
	case errors.Is(err, ErrForbidden):
		status, msg = http.StatusForbidden, "Access denied"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Message: msg})
}
