// Package otel publishes engine counters through an OpenTelemetry
// [metric.Meter].
//
// Every counter becomes an Int64ObservableCounter. Login latency is
// published as sessionguard_login_latency_seconds_bucket with one series
// per "le" attribute, plus a _count series. The caller owns the
// MeterProvider; a single callback reads Engine.MetricsSnapshot per
// collection.
package otel
