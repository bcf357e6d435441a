// ABOUTME: Server orchestrator that wires the stores, provisioner and HTTP API together
// ABOUTME: Manages listener setup, startup restore, readiness and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/orgkeeper/internal/api"
	"github.com/2389/orgkeeper/internal/auth"
	"github.com/2389/orgkeeper/internal/config"
	"github.com/2389/orgkeeper/internal/credentials"
	"github.com/2389/orgkeeper/internal/orgs"
	"github.com/2389/orgkeeper/internal/provision"
	"github.com/2389/orgkeeper/internal/provision/memory"
	"github.com/2389/orgkeeper/internal/provision/postgres"
	"github.com/2389/orgkeeper/internal/provision/sqlite"
	"github.com/2389/orgkeeper/internal/registry"
	"github.com/2389/orgkeeper/internal/store"
)

// ErrNotReady is reported by the readiness probe while shutting down.
var ErrNotReady = errors.New("server is shutting down")

// Server orchestrates the orgkeeper components.
type Server struct {
	config      *config.Config
	store       *store.SQLiteStore
	provisioner *provision.Provisioner
	service     *orgs.Service
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	mu       sync.Mutex
	addr     net.Addr
	stopping bool
	stopOnce sync.Once
	stopErr  error
}

// Option configures a Server.
type Option func(*options)

type options struct {
	version string
}

// WithVersion sets the version reported by the index endpoint.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// New builds a Server from cfg. Nothing listens until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenExpiry)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}

	credOpts := []credentials.Option{credentials.WithLogger(logger)}
	if cfg.Auth.BcryptCost != 0 {
		credOpts = append(credOpts, credentials.WithBcryptCost(cfg.Auth.BcryptCost))
	}
	creds := credentials.New(st, credOpts...)
	reg := registry.New(st, logger)
	prov := provision.New(backend,
		provision.WithTimeout(cfg.Tenants.ProvisionTimeout),
		provision.WithLogger(logger),
	)
	guard := auth.NewGuard(tokens, creds, logger)

	svcOpts := []orgs.Option{
		orgs.WithOwnerCheckOnUpdate(cfg.Auth.RequireOwnerForUpdate),
		orgs.WithLogger(logger),
	}
	if cfg.Tenants.StaleReservationAge > 0 {
		svcOpts = append(svcOpts, orgs.WithStaleReservationAge(cfg.Tenants.StaleReservationAge))
	}
	svc := orgs.New(creds, reg, prov, guard, tokens, svcOpts...)

	s := &Server{
		config:      cfg,
		store:       st,
		provisioner: prov,
		service:     svc,
		logger:      logger.With("component", "server"),
	}

	apiOpts := api.Options{
		Version: o.version,
		Ready:   s.ready,
		Logger:  logger,
	}
	if cfg.Metrics.Enabled {
		apiOpts.MetricsPath = cfg.Metrics.Path
	}
	s.handler = api.New(svc, guard, apiOpts).Routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server initialized",
		"tenant_backend", backend.Name(),
		"owner_check_on_update", cfg.Auth.RequireOwnerForUpdate,
	)
	return s, nil
}

// initStore opens the control database.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// newBackend selects the tenant storage backend named in cfg.
func newBackend(cfg *config.Config, logger *slog.Logger) (provision.Backend, error) {
	switch cfg.Tenants.Backend {
	case config.BackendSQLite, "":
		b, err := sqlite.New(cfg.Tenants.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite tenant backend: %w", err)
		}
		return b, nil
	case config.BackendPostgres:
		b, err := postgres.New(postgres.Config{DSN: cfg.Tenants.DSN}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating postgres tenant backend: %w", err)
		}
		return b, nil
	case config.BackendMemory:
		logger.Warn("memory tenant backend selected; organization data does not survive restarts")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown tenant backend %q", cfg.Tenants.Backend)
	}
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound listener address, or nil before Run has listened.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ready reports whether the control database is reachable.
func (s *Server) ready(ctx context.Context) error {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return ErrNotReady
	}
	return s.store.Ping(ctx)
}

// setupTCPListener creates the plain TCP listener for HTTP.
func (s *Server) setupTCPListener() (net.Listener, error) {
	s.logger.Info("starting orgkeeper", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates a listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}
	return s.setupTCPListener()
}

// Run restores open namespaces, serves HTTP and blocks until ctx is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.service.Restore(ctx); err != nil {
		_ = s.gracefulShutdown()
		return fmt.Errorf("restoring organizations: %w", err)
	}

	ln, err := s.setupListener(ctx)
	if err != nil {
		_ = s.gracefulShutdown()
		return err
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs Shutdown under a fresh context since the caller's is already done.
func (s *Server) gracefulShutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server, closes every namespace session and releases
// the control database. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		s.logger.Info("shutting down orgkeeper")

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
		errs = appendCloseError(errs, "namespace close", s.provisioner.CloseAll())
		if s.tsnetServer != nil {
			errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
		}
		errs = appendCloseError(errs, "store close", s.store.Close())

		s.stopErr = errors.Join(errs...)
	})
	return s.stopErr
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}
