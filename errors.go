package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/graphql"
	"github.com/MrEthical07/goSession/pipeline"
	"github.com/MrEthical07/goSession/storage"
)

var (
	// Sign-in and sign-up failures reported by the server.
	ErrInvalidCredentials = authapi.ErrInvalidCredentials
	ErrMFARequired        = authapi.ErrMFARequired
	ErrAccountLocked      = authapi.ErrAccountLocked
	ErrEmailUnverified    = authapi.ErrEmailUnverified

	// ErrSignedOut ends a data call whose credential could not be renewed.
	// The session is already cleared when a caller sees it.
	ErrSignedOut = pipeline.ErrSignedOut

	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEngineClosed     = errors.New("engine closed")
	ErrAlreadyStarted   = errors.New("engine already started")
	ErrConfigLoad       = errors.New("config load failed")
	ErrStorageRequired  = errors.New("storage backend unavailable")

	// ErrSignOutIncomplete wraps a failed server-side revocation. The local
	// session is cleared regardless.
	ErrSignOutIncomplete = errors.New("server-side sign-out failed")
)

// Re-exported so callers can match persistence failures without importing
// storage.
var ErrStorageUnavailable = storage.ErrUnavailable

const (
	msgInvalidCredentials = "The email or password is incorrect."
	msgMFARequired        = "Enter the code from your authenticator app to continue."
	msgAccountLocked      = "This account is locked. Contact your administrator."
	msgEmailUnverified    = "Verify your email address before signing in."
	msgSignedOut          = "Your session has ended. Please sign in again."
	msgForbidden          = "You do not have permission to perform this action."
	msgGeneric            = "Something went wrong. Please try again."
)

// UserMessage turns an engine error into text suitable for an end user. It
// never includes server-provided details. A nil error yields "".
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, ErrMFARequired):
		return msgMFARequired
	case errors.Is(err, ErrAccountLocked):
		return msgAccountLocked
	case errors.Is(err, ErrEmailUnverified):
		return msgEmailUnverified
	case errors.Is(err, ErrSignedOut), errors.Is(err, ErrNotAuthenticated):
		return msgSignedOut
	}

	var f *pipeline.Fault
	if errors.As(err, &f) && f.Kind == pipeline.KindForbidden {
		return msgForbidden
	}
	if graphql.CodeOf(err) == pipeline.CodeForbidden {
		return msgForbidden
	}
	return msgGeneric
}
