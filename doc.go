// Package sessionguard is an authentication and session-security engine:
// password login with brute-force lockout, email verification codes,
// stateless access tokens and server-tracked refresh tokens that rotate on
// every use and detect reuse.
//
// The [Engine] is assembled with a [Builder] from a [UserStore], an optional
// [Cache] and a [Notifier]. Engine methods are safe to call from multiple
// goroutines after [Builder.Build].
//
// # Consistency model
//
// The user record is the single source of truth. Every operation loads it,
// applies a pure state transition from internal/flows and saves it with a
// compare-and-swap on the record version; a lost race re-runs the
// operation against a fresh read. Lockout counters, verification state and
// refresh records therefore stay correct across processes.
//
// The cache is advisory. Login uses a cached projection only to find the
// record id and always decides on the stored record. Every operation
// behaves the same with cache.NoOp installed.
//
// # Errors
//
// Enumeration-sensitive paths return a small closed set of sentinels
// (ErrInvalidCredentials, ErrInvalidOrExpiredCode, ErrInvalidRequest,
// ErrInvalidToken). [HTTPStatus] maps them to boundary responses. Store
// failures propagate unmodified.
//
// # Access tokens
//
// Access tokens are signed JWTs that the engine does not track. They cannot
// be revoked before they expire; revocation happens on the refresh layer.
package sessionguard
