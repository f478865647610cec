package pipeline

import (
	"errors"
	"fmt"
)

// Machine-readable fault codes sent by the server.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
)

// ErrSignedOut is returned when a call ended in a forced sign-out.
var ErrSignedOut = errors.New("session ended: sign-in required")

// Kind groups fault codes by how the pipeline treats them.
type Kind uint8

const (
	KindOther Kind = iota
	KindUnauthenticated
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	default:
		return "other"
	}
}

// Classify maps a server code to a [Kind].
func Classify(code string) Kind {
	switch code {
	case CodeUnauthenticated:
		return KindUnauthenticated
	case CodeForbidden:
		return KindForbidden
	default:
		return KindOther
	}
}

// Fault is a classified failure of one outbound call.
type Fault struct {
	Kind       Kind
	Code       string
	Message    string
	Operation  string
	StatusCode int
}

func (f *Fault) Error() string {
	if f.Operation != "" {
		return fmt.Sprintf("%s: %s: %s", f.Operation, f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// SignedOutError ends a call whose credential fault could not be recovered.
// It matches both [ErrSignedOut] and the underlying *Fault.
type SignedOutError struct {
	Fault *Fault
}

func (e *SignedOutError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrSignedOut.Error(), e.Fault.Error())
}

func (e *SignedOutError) Unwrap() []error {
	return []error{ErrSignedOut, e.Fault}
}
