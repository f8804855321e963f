// Package prometheus renders engine counters in the Prometheus text
// exposition format without a client library or global registry.
//
// Counters are named sessionguard_*_total. Login latency is exported as the
// histogram sessionguard_login_latency_seconds; its _sum is always zero
// because snapshots carry bucket counts only.
package prometheus
