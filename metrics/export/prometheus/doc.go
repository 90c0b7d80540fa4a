// Package prometheus exposes goOnboard metrics to Prometheus through client_golang.
//
// [NewPrometheusExporter] wraps a [goOnboard.Engine] in a [Collector] that reads
// counters, the identity latency histogram, audit delivery counters and live engine
// gauges on every scrape. Hosts register it on their own registry with
// [PrometheusExporter.Register] and serve it with [Handler]; [PrometheusExporter.Handler]
// is the standalone form.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
