// Package prometheus exposes havenAuth engine counters as a Prometheus
// collector.
//
// [Exporter] implements prometheus.Collector. Counters are named
// havenauth_*_total; the single histogram is
// havenauth_authenticate_latency_seconds. [Exporter.Handler] serves a
// private registry through promhttp.
//
// # What this package must NOT do
//
//   - Register into the global default registry.
//   - Mutate engine state.
package prometheus
