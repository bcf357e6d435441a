// ABOUTME: Prometheus collectors for HTTP traffic, organizations and namespaces
// ABOUTME: Registered on the default registry at init

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProvisionBuckets covers namespace provisioning latencies from 1ms up to the
// default 10s provisioning timeout.
var ProvisionBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts HTTP requests by method, route pattern, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgkeeper_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orgkeeper_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// OpenNamespaces tracks the number of live tenant storage handles.
	OpenNamespaces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orgkeeper_namespaces_open",
			Help: "Open tenant storage handles",
		},
	)

	// ProvisionTotal counts namespace open attempts by backend and outcome
	// (ok, reused, timeout, unavailable, collision, invalid).
	ProvisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgkeeper_provision_total",
			Help: "Namespace provisioning attempts",
		},
		[]string{"backend", "outcome"},
	)

	// ProvisionDuration records backend open latency in seconds.
	ProvisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orgkeeper_provision_duration_seconds",
			Help:    "Namespace provisioning latency",
			Buckets: ProvisionBuckets,
		},
		[]string{"backend"},
	)

	// OrganizationOpsTotal counts lifecycle operations by name and outcome.
	OrganizationOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgkeeper_organization_operations_total",
			Help: "Organization lifecycle operations",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		OpenNamespaces,
		ProvisionTotal,
		ProvisionDuration,
		OrganizationOpsTotal,
	)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
