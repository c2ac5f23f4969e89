// Package otel binds tokenauth counters and the verify-latency histogram to
// OpenTelemetry observable instruments.
//
// A single registered callback reads [tokenauth.Engine.MetricsSnapshot] on
// each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
