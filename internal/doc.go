// Package internal holds private helpers: identifier, refresh-token and
// verification-code generation.
//
// Sub-packages:
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: pure state transitions over a loaded user record
//   - limiters: lockout and resend-cooldown rules over record fields
//   - rate: Redis-backed fixed-window counters
package internal
