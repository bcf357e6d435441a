// ABOUTME: HTTP handler wiring for the organization API
// ABOUTME: Builds the ServeMux, the middleware chain, and the health/index endpoints

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/orgkeeper/internal/auth"
	"github.com/2389/orgkeeper/internal/metrics"
	"github.com/2389/orgkeeper/internal/orgs"
)

// Options configures a Handler.
type Options struct {
	// Version is reported by the index endpoint.
	Version string

	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error

	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string

	Logger *slog.Logger
}

// Handler serves the organization API.
type Handler struct {
	svc     *orgs.Service
	guard   *auth.Guard
	opts    Options
	started time.Time
	logger  *slog.Logger
}

// New creates a Handler.
func New(svc *orgs.Service, guard *auth.Guard, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Handler{
		svc:     svc,
		guard:   guard,
		opts:    opts,
		started: time.Now(),
		logger:  logger.With("component", "api"),
	}
}

// Routes returns the full HTTP handler including middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	requireAdmin := auth.RequireAdmin(h.guard, h.deny)

	mux.HandleFunc("POST /org/create", h.handleCreate)
	mux.HandleFunc("GET /org/get/{name}", h.handleGet)
	if h.svc.OwnerCheckOnUpdate() {
		mux.Handle("PUT /org/update/{name}", requireAdmin(http.HandlerFunc(h.handleUpdate)))
	} else {
		mux.HandleFunc("PUT /org/update/{name}", h.handleUpdate)
	}
	mux.Handle("DELETE /org/delete/{name}", requireAdmin(http.HandlerFunc(h.handleDelete)))
	mux.HandleFunc("POST /admin/login", h.handleLogin)

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /health/ready", h.handleReady)
	mux.HandleFunc("GET /{$}", h.handleIndex)
	if h.opts.MetricsPath != "" {
		mux.Handle("GET "+h.opts.MetricsPath, metrics.Handler())
	}
	mux.HandleFunc("/", h.handleNotFound)

	var handler http.Handler = mux
	handler = metrics.Middleware(handler)
	handler = h.logRequests(handler)
	handler = cors(handler)
	handler = withRequestID(handler)
	return handler
}

// deny is the RequireAdmin failure hook; it keeps auth errors in the envelope.
func (h *Handler) deny(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, err)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Server is healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Seconds(),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Message: "Not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Ready"})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Organization Management API is running",
		"version": h.opts.Version,
		"endpoints": map[string]string{
			"health": "/health",
			"create": "POST /org/create",
			"get":    "GET /org/get/:name",
			"update": "PUT /org/update/:name",
			"delete": "DELETE /org/delete/:name",
			"login":  "POST /admin/login",
		},
	})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success": false,
		"message": "Route not found",
		"path":    r.URL.Path,
	})
}
