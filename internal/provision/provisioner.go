// ABOUTME: Provisioner keeps one live storage handle per tenant namespace
// ABOUTME: Per-namespace locking, idempotent open, collision detection and a hard open timeout

package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/orgkeeper/internal/keylock"
	"github.com/2389/orgkeeper/internal/metrics"
)

// DefaultTimeout bounds a single backend open.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNamespaceCollision is returned when the namespace is already held for a
	// different organization name.
	ErrNamespaceCollision = errors.New("namespace already in use by another organization")

	// ErrProvisionTimeout is returned when the backend did not open the namespace
	// within the provisioning timeout.
	ErrProvisionTimeout = errors.New("provisioning timed out")

	// ErrProvisionUnavailable is returned for any other backend failure.
	ErrProvisionUnavailable = errors.New("storage backend unavailable")

	// ErrClosed is returned by Open after CloseAll.
	ErrClosed = errors.New("provisioner is closed")
)

// OwnerMismatch is the error a backend returns when namespaceID is recorded as
// belonging to owner and tenant asks to open it.
func OwnerMismatch(namespaceID, owner, tenant string) error {
	return fmt.Errorf("%w: %s belongs to %q, not %q", ErrNamespaceCollision, namespaceID, owner, tenant)
}

// Handle is a live session bound to one namespace.
type Handle interface {
	// Namespace returns the namespace id the handle is bound to.
	Namespace() string
	// Ping checks the session is usable.
	Ping(ctx context.Context) error
	// Close releases the session.
	Close() error
}

// Backend opens namespace sessions on some storage system. Opening a namespace
// that does not yet exist creates it and records tenant as its owner; opening
// it later for any other tenant fails with an error wrapping
// ErrNamespaceCollision. The record outlives every handle.
type Backend interface {
	Name() string
	Open(ctx context.Context, namespaceID, tenant string) (Handle, error)
}

type entry struct {
	handle Handle
	tenant string
}

// Provisioner is a registry of open handles keyed by namespace id.
type Provisioner struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
	locks   *keylock.Locker

	mu      sync.RWMutex
	handles map[string]*entry
	closed  bool
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithTimeout sets the backend open timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Provisioner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Provisioner over backend.
func New(backend Backend, opts ...Option) *Provisioner {
	p := &Provisioner{
		backend: backend,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		locks:   keylock.New(),
		handles: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "provisioner", "backend", backend.Name())
	return p
}

// Backend returns the name of the storage backend.
func (p *Provisioner) Backend() string {
	return p.backend.Name()
}

// Open returns the handle for namespaceID, opening it if needed. tenant is the
// normalized organization name the namespace belongs to.
func (p *Provisioner) Open(ctx context.Context, namespaceID, tenant string) (Handle, error) {
	h, _, err := p.Provision(ctx, namespaceID, tenant)
	return h, err
}

// Provision is Open that also reports whether this call created the handle, so
// a caller rolling back knows whether the handle is its to close.
func (p *Provisioner) Provision(ctx context.Context, namespaceID, tenant string) (Handle, bool, error) {
	unlock := p.locks.Lock(namespaceID)
	defer unlock()

	p.mu.RLock()
	closed := p.closed
	existing := p.handles[namespaceID]
	p.mu.RUnlock()

	if closed {
		return nil, false, ErrClosed
	}
	if existing != nil {
		if existing.tenant != tenant {
			metrics.ProvisionTotal.WithLabelValues(p.backend.Name(), "collision").Inc()
			p.logger.Warn("namespace collision",
				"namespace", namespaceID,
				"tenant", tenant,
				"held_by", existing.tenant,
			)
			return nil, false, ErrNamespaceCollision
		}
		metrics.ProvisionTotal.WithLabelValues(p.backend.Name(), "reused").Inc()
		return existing.handle, false, nil
	}

	start := time.Now()
	h, err := p.openWithTimeout(ctx, namespaceID, tenant)
	metrics.ProvisionDuration.WithLabelValues(p.backend.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrInvalidNamespace) {
			metrics.ProvisionTotal.WithLabelValues(p.backend.Name(), "invalid").Inc()
			p.logger.Warn("namespace rejected by backend", "namespace", namespaceID, "error", err)
			return nil, false, err
		}
		if errors.Is(err, ErrNamespaceCollision) {
			metrics.ProvisionTotal.WithLabelValues(p.backend.Name(), "collision").Inc()
			p.logger.Warn("namespace owned by another organization",
				"namespace", namespaceID,
				"tenant", tenant,
				"error", err,
			)
			return nil, false, err
		}
		outcome := "unavailable"
		if errors.Is(err, ErrProvisionTimeout) {
			outcome = "timeout"
		}
		metrics.ProvisionTotal.WithLabelValues(p.backend.Name(), outcome).Inc()
		p.logger.Error("failed to open namespace", "namespace", namespaceID, "error", err)
		return nil, false, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = h.Close()
		return nil, false, ErrClosed
	}
	p.handles[namespaceID] = &entry{handle: h, tenant: tenant}
	n := len(p.handles)
	p.mu.Unlock()

	metrics.ProvisionTotal.WithLabelValues(p.backend.Name(), "ok").Inc()
	metrics.OpenNamespaces.Set(float64(n))
	p.logger.Info("opened namespace", "namespace", namespaceID, "tenant", tenant, "duration", time.Since(start))
	return h, true, nil
}

// openWithTimeout runs the backend open under the provisioning deadline. A
// backend that ignores its context is abandoned at the deadline and its late
// handle closed when it arrives.
func (p *Provisioner) openWithTimeout(ctx context.Context, namespaceID, tenant string) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		h   Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := p.backend.Open(ctx, namespaceID, tenant)
		done <- result{h: h, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			switch {
			case errors.Is(r.err, ErrNamespaceCollision), errors.Is(r.err, ErrInvalidNamespace):
				return nil, r.err
			case errors.Is(r.err, context.DeadlineExceeded):
				return nil, fmt.Errorf("%w: %s after %s", ErrProvisionTimeout, namespaceID, p.timeout)
			}
			return nil, fmt.Errorf("%w: %w", ErrProvisionUnavailable, r.err)
		}
		return r.h, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.h != nil {
				_ = r.h.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrProvisionTimeout, namespaceID, p.timeout)
		}
		return nil, fmt.Errorf("%w: %w", ErrProvisionUnavailable, ctx.Err())
	}
}

// Close closes and forgets the handle for namespaceID. Closing a namespace that
// is not open is a no-op.
func (p *Provisioner) Close(namespaceID string) error {
	unlock := p.locks.Lock(namespaceID)
	defer unlock()

	p.mu.Lock()
	e, ok := p.handles[namespaceID]
	delete(p.handles, namespaceID)
	n := len(p.handles)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.OpenNamespaces.Set(float64(n))

	if err := e.handle.Close(); err != nil {
		return fmt.Errorf("closing namespace %s: %w", namespaceID, err)
	}
	p.logger.Info("closed namespace", "namespace", namespaceID, "tenant", e.tenant)
	return nil
}

// CloseAll closes every handle and rejects further opens.
func (p *Provisioner) CloseAll() error {
	p.mu.Lock()
	p.closed = true
	handles := p.handles
	p.handles = make(map[string]*entry)
	p.mu.Unlock()

	metrics.OpenNamespaces.Set(0)

	var errs []error
	for ns, e := range handles {
		if err := e.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing namespace %s: %w", ns, err))
		}
	}
	p.logger.Info("closed all namespaces", "count", len(handles))
	return errors.Join(errs...)
}

// Handle returns the open handle for namespaceID, if any.
func (p *Provisioner) Handle(namespaceID string) (Handle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.handles[namespaceID]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Len returns the number of open handles.
func (p *Provisioner) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}

// Namespaces returns the open namespace ids in sorted order.
func (p *Provisioner) Namespaces() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.handles))
	for ns := range p.handles {
		ids = append(ids, ns)
	}
	p.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
