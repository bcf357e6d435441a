// ABOUTME: Maps domain errors to HTTP status codes and client-facing messages
// ABOUTME: Unknown errors become 500 "Server Error" and are logged by the caller

package api

import (
	"errors"
	"net/http"

	"github.com/2389/orgkeeper/internal/auth"
	"github.com/2389/orgkeeper/internal/credentials"
	"github.com/2389/orgkeeper/internal/orgs"
	"github.com/2389/orgkeeper/internal/provision"
	"github.com/2389/orgkeeper/internal/registry"
)

// errBadRequestBody is returned for request bodies that are not valid JSON.
var errBadRequestBody = errors.New("invalid JSON body")

// StatusFor returns the HTTP status and message for err. The boolean is false
// for errors that have no client-facing mapping.
func StatusFor(err error) (int, string, bool) {
	var verr *orgs.ValidationError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Request body too large", true
	case errors.Is(err, errBadRequestBody):
		return http.StatusBadRequest, "Invalid JSON body", true
	case errors.As(err, &verr):
		return http.StatusBadRequest, capitalize(verr.Msg), true
	case errors.Is(err, orgs.ErrValidation):
		return http.StatusBadRequest, "Invalid request", true
	case errors.Is(err, registry.ErrNameTaken):
		return http.StatusBadRequest, "Organization name already exists", true
	case errors.Is(err, credentials.ErrDuplicateEmail):
		return http.StatusBadRequest, "Email is already registered", true
	case errors.Is(err, registry.ErrNamespaceCollision),
		errors.Is(err, provision.ErrNamespaceCollision):
		return http.StatusBadRequest, "Organization storage namespace is already in use", true
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, "Organization not found", true
	case errors.Is(err, credentials.ErrNotFound):
		return http.StatusNotFound, "Admin user not found", true
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authorized to access this route", true
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token", true
	case errors.Is(err, credentials.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials", true
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "Access denied. You can only manage your own organization.", true
	case errors.Is(err, provision.ErrProvisionTimeout),
		errors.Is(err, provision.ErrProvisionUnavailable),
		errors.Is(err, provision.ErrClosed):
		return http.StatusInternalServerError, "Failed to provision organization storage", true
	}
	return http.StatusInternalServerError, "Server Error", false
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
