// ABOUTME: In-process namespace backend holding a key/value map per namespace
// ABOUTME: Records namespace owners and supports failure and latency injection

package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/2389/orgkeeper/internal/provision"
)

// ErrHandleClosed is returned by operations on a closed handle.
var ErrHandleClosed = errors.New("handle is closed")

// Backend keeps namespace data in memory. Data survives closing a handle, the
// same way a file or schema outlives its connection.
type Backend struct {
	mu      sync.Mutex
	data    map[string]map[string]string
	owners  map[string]string
	opens   map[string]int
	live    map[string]int
	delay   time.Duration
	failure error
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{
		data:   make(map[string]map[string]string),
		owners: make(map[string]string),
		opens:  make(map[string]int),
		live:   make(map[string]int),
	}
}

// Name implements provision.Backend.
func (b *Backend) Name() string { return "memory" }

// SetDelay makes every Open wait d (or until its context ends).
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// SetFailure makes every Open fail with err. A nil err clears it.
func (b *Backend) SetFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = err
}

var _ provision.Backend = (*Backend)(nil)

// Open implements provision.Backend. The returned handle is a *Handle.
func (b *Backend) Open(ctx context.Context, namespaceID, tenant string) (provision.Handle, error) {
	b.mu.Lock()
	delay, failure := b.delay, b.failure
	b.opens[namespaceID]++
	b.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if failure != nil {
		return nil, failure
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if owner, ok := b.owners[namespaceID]; ok && owner != tenant {
		return nil, provision.OwnerMismatch(namespaceID, owner, tenant)
	}
	b.owners[namespaceID] = tenant
	if b.data[namespaceID] == nil {
		b.data[namespaceID] = make(map[string]string)
	}
	b.live[namespaceID]++
	return &Handle{backend: b, namespace: namespaceID}, nil
}

// Opens returns how many times Open was called for namespaceID.
func (b *Backend) Opens(namespaceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens[namespaceID]
}

// Live returns the number of unclosed handles for namespaceID.
func (b *Backend) Live(namespaceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live[namespaceID]
}

// Exists reports whether namespaceID was ever created.
func (b *Backend) Exists(namespaceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[namespaceID]
	return ok
}

// Owner returns the tenant recorded for namespaceID.
func (b *Backend) Owner(namespaceID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.owners[namespaceID]
	return owner, ok
}

// Handle is a session on one in-memory namespace.
type Handle struct {
	backend   *Backend
	namespace string

	closeOnce sync.Once
	closed    bool
}

// Namespace implements provision.Handle.
func (h *Handle) Namespace() string { return h.namespace }

// Ping implements provision.Handle.
func (h *Handle) Ping(ctx context.Context) error {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	return ctx.Err()
}

// Put stores a value in the namespace.
func (h *Handle) Put(key, value string) error {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	h.backend.data[h.namespace][key] = value
	return nil
}

// Get reads a value from the namespace.
func (h *Handle) Get(key string) (string, bool, error) {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	if h.closed {
		return "", false, ErrHandleClosed
	}
	v, ok := h.backend.data[h.namespace][key]
	return v, ok, nil
}

// Close implements provision.Handle. It is idempotent.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.backend.mu.Lock()
		defer h.backend.mu.Unlock()
		h.closed = true
		h.backend.live[h.namespace]--
	})
	return nil
}
