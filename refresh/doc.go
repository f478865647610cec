// Package refresh deduplicates access-credential renewal.
//
// # Single flight
//
// [Coordinator.Refresh] shares one renewal among every concurrent caller of
// one engine instance. The in-flight marker is dropped before callers are
// resolved, so a call made after completion starts a new renewal. Different
// instances may renew concurrently; whichever commits last wins locally.
//
// # Outcomes
//
// A successful renewal is committed with the epoch captured before the
// network call. If the session was cleared meanwhile, the payload is dropped
// and callers see false. Failures never touch the session: the caller decides
// whether false means clear.
//
// # Architecture boundaries
//
// The coordinator knows a [Renewer] and a [Store]. It does not know how the
// renewal travels (GraphQL, RPC) nor what the caller does with the result.
//
// # What this package must NOT do
//
//   - Clear the session.
//   - Cancel a renewal because one waiting caller went away.
//   - Import goSession, pipeline or scheduler.
package refresh
