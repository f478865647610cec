// Package goSession keeps an ERP client signed in. It owns the credential
// pair issued by the endpoint, renews it before and after it expires, and
// attaches it to every outgoing data operation.
//
// The package is designed for long-running clients: Engine methods are safe to
// call from multiple goroutines after [Builder.Build] and [Engine.Start].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config],
// and the value types shared with callers (Snapshot, Fault, AuditEvent). The
// moving parts live in sub-packages:
//
//   - credential: the in-memory credential store and its persisted record
//   - refresh: the single-flight renewal coordinator
//   - scheduler: pre-emptive renewal ahead of expiry
//   - pipeline: credential injection, fault classification and replay
//   - crosstab: change propagation between instances sharing a storage key
//   - storage: memory, file and Redis backends
//
// # What this package must NOT do
//
//   - Persist the access credential. Only the renewal credential reaches storage.
//   - Issue more than one renewal at a time for a given engine.
//   - Replay a request more than twice, or replay a FORBIDDEN fault at all.
//
// # Lifecycle
//
// Build wires components without I/O. Start subscribes to other instances,
// launches the scheduler and restores a persisted session. Close stops
// background work and releases the storage backend.
package goSession
