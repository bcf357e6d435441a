// Package server wires orgkeeper's components into a running HTTP service.
//
// New builds the control database, the tenant storage backend selected by
// configuration, the credential store, the registry, the provisioner, the
// lifecycle service and the HTTP API. Run reopens the namespace of every
// active organization, then serves on TCP or on a Tailscale node until its
// context is canceled. Shutdown closes every namespace session before the
// control database.
package server
