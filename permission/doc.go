// Package permission holds the permission names granted with a session.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Sets are
// built once per payload and shared read-only between goroutines.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Interpret permission names beyond exact string match.
package permission
