// Package middleware gates HTTP front-end routes on the client session.
//
//   - [RequireSession] waits out initialization and redirects signed-out
//     visitors to the sign-in page.
//   - [RequireSessionAPI] answers 401 instead of redirecting.
//   - [RequirePermission] hides routes the user was not granted.
//
// These are display gates. Authorization is enforced by the server; the
// guards only read the engine's state and never renew or clear it.
package middleware
