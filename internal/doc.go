// Package internal holds helpers private to goSession.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - fakeserver: an in-process ERP endpoint for tests, examples and load runs
//   - security: posture report derived from a resolved configuration
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API except through
//     aliases declared by the root package.
package internal
