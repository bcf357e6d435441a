// ABOUTME: Namespace id derivation from organization names
// ABOUTME: Pure mapping: lower-case, non [a-z0-9] bytes become '_', prefixed with org_

package provision

import (
	"errors"
	"strings"
)

// NamespacePrefix starts every namespace id.
const NamespacePrefix = "org_"

// ErrInvalidNamespace is returned by backends for ids NamespaceID cannot produce.
var ErrInvalidNamespace = errors.New("invalid namespace id")

// NamespaceID derives the storage namespace for an organization name.
//
// The name is lower-cased and every byte outside [a-z0-9] is replaced with '_',
// so a multi-byte character contributes one '_' per byte. The mapping is
// idempotent but not injective: "Test Company!" and "test_company_" both map
// to "org_test_company_". Open detects such collisions.
func NamespaceID(name string) string {
	lower := strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(NamespacePrefix) + len(lower))
	b.WriteString(NamespacePrefix)
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ValidNamespaceID reports whether id has the shape NamespaceID produces. Backends
// use it before turning an id into a file name or SQL identifier.
func ValidNamespaceID(id string) bool {
	rest, ok := strings.CutPrefix(id, NamespacePrefix)
	if !ok || rest == "" {
		return false
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}
