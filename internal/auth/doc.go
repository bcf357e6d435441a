// Package auth authenticates organization admins and authorizes tenant
// operations.
//
// # Tokens
//
// Admins receive an HS256 JWT at login. Claims:
//
//   - sub: admin id
//   - email: admin email at issue time
//   - org: id of the organization the admin owns
//   - iat, exp: issue and expiry times
//
// Tokens are stateless; nothing is persisted server-side. Every verification
// failure (bad signature, malformed, expired, wrong algorithm) surfaces as
// ErrInvalidToken.
//
// # Request flow
//
// A guarded request moves through:
//
//	Unauthenticated -> TokenPresented -> TokenValidated -> OwnershipChecked -> Authorized
//
// Guard.Authenticate covers the first three steps: a missing or malformed
// Authorization header is ErrUnauthorized, a token that fails verification or
// whose subject no longer exists is ErrInvalidToken. RequireAdmin runs it as
// HTTP middleware and stores the resulting Identity in the request context.
//
// Guard.AuthorizeOwner is the last step: only the admin recorded as an
// organization's owner passes, everyone else gets ErrForbidden.
package auth
