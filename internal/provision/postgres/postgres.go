// ABOUTME: PostgreSQL namespace backend with one schema per namespace
// ABOUTME: Handles are single-connection pools pinned to the schema; owners are recorded in it

package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/2389/orgkeeper/internal/provision"
)

// MaxIdentifierLength is the longest identifier PostgreSQL keeps without
// truncating (NAMEDATALEN - 1).
const MaxIdentifierLength = 63

const ownerSchema = `
CREATE TABLE IF NOT EXISTS orgkeeper_namespace (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	owner TEXT NOT NULL
)`

// Backend opens namespace schemas on one PostgreSQL server.
type Backend struct {
	base   *pgxpool.Config
	logger *slog.Logger
}

var _ provision.Backend = (*Backend)(nil)

// New validates cfg and creates a Backend. No connection is made until Open.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	cfg.defaults()

	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = 1
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{base: poolCfg, logger: logger.With("component", "postgres-backend")}, nil
}

// Name implements provision.Backend.
func (b *Backend) Name() string { return "postgres" }

// Open implements provision.Backend. The schema is created if missing. The
// returned handle is a *Handle.
func (b *Backend) Open(ctx context.Context, namespaceID, tenant string) (provision.Handle, error) {
	if !provision.ValidNamespaceID(namespaceID) {
		return nil, fmt.Errorf("%w: %q", provision.ErrInvalidNamespace, namespaceID)
	}
	// Longer names would be silently truncated and could share a schema.
	if len(namespaceID) > MaxIdentifierLength {
		return nil, fmt.Errorf("%w: %q is longer than %d bytes", provision.ErrInvalidNamespace, namespaceID, MaxIdentifierLength)
	}

	cfg := b.base.Copy()
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = make(map[string]string)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = namespaceID
	cfg.ConnConfig.RuntimeParams["application_name"] = "orgkeeper/" + namespaceID

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	schema := pgx.Identifier{namespaceID}.Sanitize()
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema %s: %w", namespaceID, err)
	}
	if err := claim(ctx, pool, namespaceID, tenant); err != nil {
		pool.Close()
		return nil, err
	}

	b.logger.Debug("opened namespace schema", "namespace", namespaceID)
	return &Handle{namespace: namespaceID, pool: pool}, nil
}

// claim records tenant as the owner of a fresh schema and checks it against
// the recorded owner of an existing one.
func claim(ctx context.Context, pool *pgxpool.Pool, namespaceID, tenant string) error {
	if _, err := pool.Exec(ctx, ownerSchema); err != nil {
		return fmt.Errorf("creating owner table in %s: %w", namespaceID, err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO orgkeeper_namespace (id, owner) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, tenant); err != nil {
		return fmt.Errorf("recording owner of %s: %w", namespaceID, err)
	}
	var owner string
	if err := pool.QueryRow(ctx,
		`SELECT owner FROM orgkeeper_namespace WHERE id = 1`).Scan(&owner); err != nil {
		return fmt.Errorf("reading owner of %s: %w", namespaceID, err)
	}
	if owner != tenant {
		return provision.OwnerMismatch(namespaceID, owner, tenant)
	}
	return nil
}

// Handle is a session pinned to one namespace schema.
type Handle struct {
	namespace string
	pool      *pgxpool.Pool
}

// Namespace implements provision.Handle.
func (h *Handle) Namespace() string { return h.namespace }

// Pool exposes the session for tenant data access. Unqualified table names
// resolve inside the namespace schema.
func (h *Handle) Pool() *pgxpool.Pool { return h.pool }

// Ping implements provision.Handle.
func (h *Handle) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// Close implements provision.Handle.
func (h *Handle) Close() error {
	h.pool.Close()
	return nil
}
