// Package sqlite is a namespace backend that gives every namespace its own
// SQLite database file, <dir>/<namespace>.db.
package sqlite
