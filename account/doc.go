// Package account defines the persisted user record and the read-side
// projections shared by the engine, the user stores and the caches.
//
// The user record is the only source of truth for credentials, lockout
// state, refresh tokens and the audit trail. Every mutation is committed as a
// single versioned write; see [User.Version].
package account
