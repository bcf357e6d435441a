// Package metrics provides Prometheus metrics and HTTP middleware for
// monitoring orgkeeper.
package metrics
