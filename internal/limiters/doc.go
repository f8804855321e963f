// Package limiters holds the per-user throttling rules that operate on the
// user record itself: failed-login lockout and the verification resend
// cooldown.
//
// Limiters only count and compare. Flow functions decide what an exceeded
// limit means for the caller.
package limiters
