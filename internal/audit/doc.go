// Package audit relays security events to an observability sink.
//
// The [Dispatcher] buffers events on a channel and forwards them from a
// single goroutine, either blocking or dropping when the buffer is full.
// This stream is separate from the per-user audit log persisted with the
// user record; losing an event here never loses a durable entry.
package audit
