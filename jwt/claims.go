package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a credential is not a decodable JWT.
var ErrMalformedToken = errors.New("malformed access credential")

// ErrNoExpiry is returned when a credential carries no exp claim.
var ErrNoExpiry = errors.New("access credential has no expiry")

// AccessClaims is the claim set issued with every access credential.
type AccessClaims struct {
	UID string `json:"uid,omitempty"`
	TID string `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// UserID prefers the uid claim and falls back to sub.
func (c AccessClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Expiry returns the exp claim, or the zero time when absent.
func (c AccessClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
