// Package store provides the control-plane persistence for orgkeeper using SQLite.
//
// # Architecture
//
// Two interfaces split the data by owner:
//
//   - AdminStore: admin identities (email, bcrypt hash, owned organization)
//   - OrganizationStore: the organization registry rows, including reservations
//
// SQLiteStore implements both in a single struct. Tenant data never lives here;
// each organization's data lives in its own namespace opened by the provision
// package.
//
// # Organization rows
//
// A row is inserted with status "reserved" before provisioning starts and flipped
// to "active" once the owner and namespace are known. Both name and namespace_id
// carry UNIQUE constraints, so concurrent creators race on the database rather
// than on in-process state:
//
//	reserved --Activate--> active --Delete--> (gone)
//	reserved --DeleteReservation--> (gone)
//
// # SQLite Configuration
//
// Pragmas are applied through the DSN so every pooled connection gets them:
//
//	journal_mode=WAL, foreign_keys=ON, busy_timeout=5000
//
// # Error Handling
//
//   - ErrAdminNotFound, ErrOrganizationNotFound: lookup misses
//   - ErrEmailExists: admins.email UNIQUE violation
//   - ErrOrganizationExists: organizations.name UNIQUE violation
//   - ErrNamespaceExists: organizations.namespace_id UNIQUE violation
package store
