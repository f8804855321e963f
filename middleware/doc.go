// Package middleware adapts the engine to net/http.
//
//   - [RequireAccess] verifies the bearer access token and stores its claims
//     on the request context.
//   - [RequireRole] rejects requests whose claims carry another role.
//   - [ClientMetadata] records the caller's IP and User-Agent so that engine
//     operations can stamp audit entries and refresh records with them.
//
// Access validation is stateless: no store or cache is consulted.
package middleware
