// Package otel binds goSession engine metrics to OpenTelemetry observable
// instruments.
//
// [New] registers one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per renewal latency bucket. A single callback reads
// the engine snapshot on each collection. Callers own the MeterProvider.
package otel
