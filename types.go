package goSession

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credential"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/pipeline"
)

// Authenticator performs the four remote authentication operations. The
// default implementation is [authapi.Client] against Config.Endpoint.URL.
type Authenticator interface {
	SignIn(ctx context.Context, in authapi.SignInInput) (credential.Payload, error)
	SignUp(ctx context.Context, in authapi.SignUpInput) (credential.Payload, error)
	Renew(ctx context.Context, renewalCredential string) (credential.Payload, error)
	SignOut(ctx context.Context, accessCredential string) error
}

type (
	SignInInput = authapi.SignInInput
	SignUpInput = authapi.SignUpInput

	// Snapshot is a point-in-time copy of the session.
	Snapshot = credential.Snapshot
	Identity = credential.Identity
	Fault    = pipeline.Fault
)

// SignInRedirector sends the user to the sign-in page after a forced
// sign-out. It runs after the session was cleared.
type SignInRedirector func(ctx context.Context, reason error)

// ViolationHandler receives every FORBIDDEN fault. The call itself still
// fails with the fault.
type ViolationHandler func(ctx context.Context, f *Fault)

// Audit types. See internal/audit for the event vocabulary.
type AuditEvent = internalaudit.Event

type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

type LogSink = internalaudit.LogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(l zerolog.Logger) LogSink {
	return internalaudit.NewLogSink(l)
}

// Audit event types.
const (
	AuditSignedIn           = internalaudit.TypeSignedIn
	AuditSignedUp           = internalaudit.TypeSignedUp
	AuditSignedOut          = internalaudit.TypeSignedOut
	AuditSignInFailed       = internalaudit.TypeSignInFailed
	AuditSignUpFailed       = internalaudit.TypeSignUpFailed
	AuditRefreshed          = internalaudit.TypeRefreshed
	AuditRefreshFailed      = internalaudit.TypeRefreshFailed
	AuditCleared            = internalaudit.TypeCleared
	AuditForcedSignOut      = internalaudit.TypeForcedSignOut
	AuditViolation          = internalaudit.TypeViolation
	AuditSyncCleared        = internalaudit.TypeSyncCleared
	AuditSyncRenewalUpdated = internalaudit.TypeSyncRenewalUpdated
	AuditInitialized        = internalaudit.TypeInitialized
	AuditInitFailed         = internalaudit.TypeInitializationFailed
)
