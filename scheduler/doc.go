// Package scheduler renews the access credential shortly before it expires.
//
// Every tick compares the remaining lifetime of the access credential with a
// safety margin. Inside (0, margin] the renewal trigger runs once. An already
// expired credential is left to the request pipeline, which renews on the
// first rejected call. A failed renewal leaves the session untouched.
//
// # What this package must NOT do
//
//   - Clear the session.
//   - Renew more than once per tick.
//   - Import goSession or pipeline.
package scheduler
