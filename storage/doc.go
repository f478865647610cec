// Package storage persists the renewal credential under a single key and
// reports changes made to that key by other engine instances.
//
// # Persisted record
//
// Exactly one JSON document is stored per key: {"renewalCredential": "..."}.
// Access credentials, identities and expiry timestamps never reach a backend.
// Removing a session deletes the key; an empty object is never written.
//
// # Backends
//
//   - [Memory]: in-process, backed by a shared [MemoryHub] so several engines
//     in one process can act as separate same-origin contexts.
//   - [Redis]: key + pub/sub channel, guarded by Lua scripts so that writes
//     which do not change the value publish nothing.
//   - [File]: 0600 JSON file replaced atomically, watched with fsnotify.
//
// Every backend delivers a [Notification] only to instances other than the
// writer, and only when the stored value actually changed.
//
// # Architecture boundaries
//
// This package moves bytes. It does not decide what a notification means for
// the in-memory session; that belongs to the crosstab package.
//
// # What this package must NOT do
//
//   - Import goSession, credential or crosstab.
//   - Store anything other than the renewal credential record.
package storage
