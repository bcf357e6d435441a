// Package keylock provides per-key mutual exclusion.
//
// Unrelated keys never contend: each key gets its own mutex, created on first
// use and dropped once the last holder or waiter releases it. The registry uses
// it per organization name and the provisioner per namespace id.
package keylock
