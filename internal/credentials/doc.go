// Package credentials issues and verifies admin identities.
//
// Emails are normalized (trimmed, lower-cased) before every lookup, passwords are
// stored only as bcrypt hashes, and Verify fails with the same error and roughly
// the same latency whether the email is unknown or the password is wrong.
package credentials
