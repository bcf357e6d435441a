// ABOUTME: SQLite namespace backend with one database file per namespace
// ABOUTME: The owning organization is recorded inside the file on first open

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/2389/orgkeeper/internal/provision"
)

const ownerSchema = `
CREATE TABLE IF NOT EXISTS orgkeeper_namespace (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	owner TEXT NOT NULL
)`

// Backend opens per-namespace database files under a data directory.
type Backend struct {
	dir    string
	logger *slog.Logger
}

var _ provision.Backend = (*Backend)(nil)

// New creates a Backend rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Backend, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{dir: dir, logger: logger.With("component", "sqlite-backend")}, nil
}

// Name implements provision.Backend.
func (b *Backend) Name() string { return "sqlite" }

// Path returns the database file backing namespaceID.
func (b *Backend) Path(namespaceID string) string {
	return filepath.Join(b.dir, namespaceID+".db")
}

// Open implements provision.Backend. The file is created on first open. The
// returned handle is a *Handle.
func (b *Backend) Open(ctx context.Context, namespaceID, tenant string) (provision.Handle, error) {
	if !provision.ValidNamespaceID(namespaceID) {
		return nil, fmt.Errorf("%w: %q", provision.ErrInvalidNamespace, namespaceID)
	}

	path := b.Path(namespaceID)
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	// sql.Open is lazy; the ping creates the file and proves it is writable.
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}

	if err := claim(ctx, db, namespaceID, tenant); err != nil {
		db.Close()
		return nil, err
	}

	b.logger.Debug("opened namespace database", "namespace", namespaceID, "path", path)
	return &Handle{namespace: namespaceID, path: path, db: db}, nil
}

// claim records tenant as the owner of a fresh namespace and checks it
// against the recorded owner of an existing one.
func claim(ctx context.Context, db *sql.DB, namespaceID, tenant string) error {
	if _, err := db.ExecContext(ctx, ownerSchema); err != nil {
		return fmt.Errorf("creating owner table in %s: %w", namespaceID, err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO orgkeeper_namespace (id, owner) VALUES (1, ?)`, tenant); err != nil {
		return fmt.Errorf("recording owner of %s: %w", namespaceID, err)
	}
	var owner string
	if err := db.QueryRowContext(ctx,
		`SELECT owner FROM orgkeeper_namespace WHERE id = 1`).Scan(&owner); err != nil {
		return fmt.Errorf("reading owner of %s: %w", namespaceID, err)
	}
	if owner != tenant {
		return provision.OwnerMismatch(namespaceID, owner, tenant)
	}
	return nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// Handle is a single-connection session on one namespace database.
type Handle struct {
	namespace string
	path      string
	db        *sql.DB
}

// Namespace implements provision.Handle.
func (h *Handle) Namespace() string { return h.namespace }

// Path returns the database file.
func (h *Handle) Path() string { return h.path }

// DB exposes the session for tenant data access.
func (h *Handle) DB() *sql.DB { return h.db }

// Ping implements provision.Handle.
func (h *Handle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Close implements provision.Handle.
func (h *Handle) Close() error {
	return h.db.Close()
}
