// Package flows contains the state transitions applied to a loaded user
// record for each engine operation.
//
// Flow functions are pure: they mutate the record they are given, append
// audit entries to it, and report an outcome. Loading, saving, retrying on
// version conflicts, token signing and cache updates stay with the Engine.
// A flow never performs I/O, so a retried operation simply re-runs the flow
// against a freshly loaded record.
package flows
