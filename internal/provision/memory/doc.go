// Package memory is an in-process namespace backend. Handles hold a small
// key/value map so callers can observe isolation between namespaces. Failure
// and latency injection make it the backend of choice for tests.
package memory
