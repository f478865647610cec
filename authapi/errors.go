package authapi

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/graphql"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("mfa required")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailUnverified    = errors.New("email not verified")
	// ErrRenewalRejected means the renewal credential is invalid, expired or
	// revoked. The session cannot be recovered without signing in.
	ErrRenewalRejected = errors.New("renewal credential rejected")
	// ErrMalformedPayload is returned when the server answers without the
	// fields a session needs.
	ErrMalformedPayload = errors.New("malformed session payload")
)

// Server codes understood by the client.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMFARequired        = "MFA_REQUIRED"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidRefresh     = "INVALID_REFRESH_TOKEN"
)

func mapSignInError(err error) error {
	var sentinel error
	switch graphql.CodeOf(err) {
	case CodeInvalidCredentials, CodeUnauthenticated:
		sentinel = ErrInvalidCredentials
	case CodeMFARequired:
		sentinel = ErrMFARequired
	case CodeAccountLocked:
		sentinel = ErrAccountLocked
	case CodeEmailNotVerified:
		sentinel = ErrEmailUnverified
	default:
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func mapRenewError(err error) error {
	switch graphql.CodeOf(err) {
	case CodeUnauthenticated, CodeInvalidRefresh, CodeInvalidCredentials:
		return fmt.Errorf("%w: %v", ErrRenewalRejected, err)
	default:
		return err
	}
}
