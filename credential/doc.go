// Package credential holds the in-memory session of one engine instance and
// mirrors its renewal credential into a [storage.Backend].
//
// # Session model
//
// A [Store] keeps the access credential, renewal credential, expiry, identity,
// customer summary and permission list of the signed-in user. IsAuthenticated
// is derived (access credential and identity both present) and is never
// stored separately. IsInitializing is true from construction until the
// first renewal attempt resolves, and never becomes true again.
//
// # Mutations
//
// The session is replaced wholesale by [Store.SetFromPayload] and emptied by
// [Store.Clear]. The only partial write is [Store.ApplyRenewalCredential],
// reserved for cross-instance synchronization. Mutations are serialized;
// readers never observe a half-applied payload.
//
// Every Clear bumps an epoch counter. Work that started before a Clear (a
// renewal in flight, typically) commits through [Store.SetFromPayloadIfEpoch]
// and is discarded when the epoch moved.
//
// # Architecture boundaries
//
// Persistence is limited to the renewal credential record. Backend failures
// are logged and reported to the persist-error hook but never roll back the
// in-memory state.
//
// # What this package must NOT do
//
//   - Perform network calls or renew credentials.
//   - Persist the access credential, identity or expiry.
//   - Import goSession, refresh, pipeline or crosstab.
package credential
