// Package cache provides the advisory read caches used by the engine.
//
// Nothing stored here is authoritative. Every method is best-effort: a
// failure is logged and treated as a miss, and the engine behaves the same
// with [NoOp] installed. Cached values never include credentials, refresh
// tokens or the persisted audit trail.
package cache
