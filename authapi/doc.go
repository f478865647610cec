// Package authapi calls the authentication mutations of the ERP GraphQL API:
// signIn, signUp, refreshSession and signOut.
//
// Every successful call returns a [credential.Payload]. Server error codes
// are mapped to sentinel errors so callers can show a distinct message per
// failure (invalid credentials, MFA required, locked account, unverified
// e-mail) and so a rejected renewal can be told apart from a network fault.
//
// # Architecture boundaries
//
// The client talks through a plain HTTP client. It must not be wired to the
// renew-and-replay transport: a failing renewal would otherwise renew itself.
package authapi
