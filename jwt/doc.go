// Package jwt reads claims out of access credentials without verifying them,
// and mints signed credentials for test servers.
//
// # Architecture boundaries
//
// The client never trusts a decoded claim for authorization; the server
// verifies every credential it receives. [Inspector] exists so the engine can
// recover an expiry when the server omits one, and so tooling can display
// the tenant and subject of the current session.
//
// # What this package must NOT do
//
//   - Treat an unverified token as proof of anything.
//   - Import goSession, credential or pipeline.
package jwt
