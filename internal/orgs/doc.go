// Package orgs sequences the organization lifecycle across the credential
// store, the registry, the provisioner and the authorization guard.
//
// Create runs reserve, issue admin, open namespace, finalize, link. Any
// failure after the reservation unwinds what this call did, in reverse order,
// and returns the error that caused it. Delete runs lookup, ownership check,
// close namespace, remove organization, remove admin; namespace data is kept.
package orgs
