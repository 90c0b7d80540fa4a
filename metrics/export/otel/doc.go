// Package otel binds goOnboard metrics to OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one callback on a caller-supplied Meter. Each
// collection reads [goOnboard.Engine.MetricsSnapshot], the audit dispatcher
// counters and [goOnboard.Engine.Gauges]. Names are dotted (goonboard.otc.request);
// the identity latency histogram is a cumulative bucket gauge keyed by an le
// attribute plus a sample count.
//
// # What this package must NOT do
//
//   - Own the MeterProvider or its reader. Callers supply the Meter and shut the
//     provider down.
//   - Mutate engine state.
package otel
