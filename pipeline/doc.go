// Package pipeline is the outbound path of every data operation.
//
// # Stages
//
// Injection attaches the bearer access credential, the tenant identifier and
// a request id to each outbound call. It only reads the session.
//
// Interception classifies the result. UNAUTHENTICATED triggers a renewal and
// a replay, bounded by a per-call attempt counter carried in the request
// context. FORBIDDEN is reported to the violation hook and returned as is.
// Anything else passes through untouched.
//
// Per call:
//
//	SENT -> DELIVERED
//	SENT -> UNAUTHENTICATED, attempts left -> REFRESHING -> SENT
//	SENT -> UNAUTHENTICATED, attempts spent -> SIGNED_OUT
//	SENT -> FORBIDDEN -> REJECTED
//	SENT -> other error -> FAILED
//
// The same [Policy] drives an http.RoundTripper ([Transport]) for GraphQL
// over HTTP and a connect interceptor ([Interceptor]) for RPC calls.
//
// # Architecture boundaries
//
// Collaborators are injected at construction: a [Session] reader, a
// [Renewer] and [Hooks]. Clearing the session and redirecting to sign-in are
// the job of Hooks.OnSignOut.
//
// # What this package must NOT do
//
//   - Replay a call rejected with FORBIDDEN.
//   - Replay a call more than MaxRetries times.
//   - Import goSession, credential or refresh.
package pipeline
