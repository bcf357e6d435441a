// Package provision owns the storage handles of tenant namespaces.
//
// Every organization is backed by one isolated namespace whose id is derived
// from its normalized name by NamespaceID. The Provisioner keeps at most one
// live Handle per namespace: Open is idempotent and concurrent opens of the
// same namespace share a single backend session, while different namespaces
// open in parallel. Backend I/O is bounded by a hard timeout.
//
// Backends live in subpackages:
//
//   - memory: in-process handles, for tests and dry runs
//   - sqlite: one database file per namespace
//   - postgres: one schema per namespace in a shared server
package provision
