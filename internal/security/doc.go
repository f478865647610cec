// Package security derives the posture report exposed by
// Engine.SecurityReport from a resolved configuration.
//
// # What this package must NOT do
//
//   - Perform I/O. It only inspects values handed to it.
package security
