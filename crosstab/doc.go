// Package crosstab keeps engine instances that share one persisted key in
// step.
//
// Raw storage notifications are decoded into a typed [Message] of one of two
// kinds: [KindRenewalUpdated] (another instance stored a new renewal
// credential) and [KindCleared] (another instance signed out). The
// [Synchronizer] applies them to the local session: a clear empties it, an
// update replaces only the renewal credential. Access credentials never cross
// instances; each instance renews its own.
//
// Malformed notifications are logged and skipped. They never stop the loop.
//
// # What this package must NOT do
//
//   - Write to storage.
//   - Copy access credentials or identities between instances.
//   - Import goSession, pipeline or refresh.
package crosstab
