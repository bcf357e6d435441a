// Package postgres is a namespace backend that gives every namespace its own
// schema in a shared PostgreSQL server. Each handle is a single-connection
// pgx pool whose search_path is pinned to the namespace schema.
package postgres
