// Package registry is the authoritative mapping from organization name to its
// record (owner, namespace id, timestamps).
//
// Creation is two-phase. Reserve claims a normalized name by inserting a
// placeholder row; Finalize completes it once the owner and namespace exist;
// Release drops an unfinished claim. A name held by a reservation is taken for
// every other caller, so of several concurrent creates exactly one proceeds.
//
//	res, err := reg.Reserve(ctx, "Acme")
//	if err != nil { ... }           // ErrNameTaken
//	defer res.Release(ctx)          // no-op after Finalize
//	...
//	org, err := res.Finalize(ctx, adminID, namespaceID)
package registry
