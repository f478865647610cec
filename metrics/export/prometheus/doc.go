// Package prometheus renders goSession engine metrics in the Prometheus text
// exposition format.
//
// Mount [Exporter.Handler] on a route of your choice; nothing is registered
// in a global registry. Counters are named gosession_*_total and the
// renewal latency histogram is gosession_refresh_latency_seconds.
package prometheus
