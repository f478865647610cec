// Package graphql posts GraphQL operations over HTTP and decodes the
// standard response envelope.
//
// The client is transport-agnostic: credentials, tenant headers and the
// renew-and-replay policy live in the http.Client it is given (see the
// pipeline package). Error entries keep their extensions so callers can read
// the machine-readable code, for example UNAUTHENTICATED or FORBIDDEN.
package graphql
