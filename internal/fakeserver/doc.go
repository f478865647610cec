// Package fakeserver is an in-memory ERP GraphQL endpoint for tests and local
// demos. It implements the four authentication mutations, issues HS256
// access credentials with rotating opaque renewal credentials, and answers
// any other operation as a tenant-scoped data call.
//
// Counters (renewals, data calls) and knobs (renewal gate, scripted data
// faults, credential revocation) let tests observe single-flight renewal and
// the replay cap from the server side.
package fakeserver
