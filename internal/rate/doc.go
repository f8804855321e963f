// Package rate provides Redis fixed-window counters for the optional per-IP
// login throttle.
//
// Window semantics: INCR with EXPIRE set on the first hit. Keys are
// <prefix>:ali:<ip>.
package rate
