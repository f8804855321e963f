// Package jwt issues and verifies short-lived access tokens.
//
// Access tokens are stateless: they carry the user id and role, are signed
// with Ed25519 or HMAC-SHA256, and are never tracked server-side. A token
// stays valid until it expires.
package jwt
