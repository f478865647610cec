package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/permission"
)

// ErrInvalidPayload is returned when a payload cannot become a session.
var ErrInvalidPayload = errors.New("invalid session payload")

// Identity is the authenticated user as reported by the server.
type Identity struct {
	ID              string `json:"id"`
	TenantID        string `json:"tenantId"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	Name            string `json:"name,omitempty"`
	Role            string `json:"role,omitempty"`
	MFAEnabled      bool   `json:"mfaEnabled"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// DisplayName prefers Name, then "First Last", then Email.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if full := strings.TrimSpace(i.FirstName + " " + i.LastName); full != "" {
		return full
	}
	return i.Email
}

// CustomerSummary identifies the tenant organisation the user signed into.
type CustomerSummary struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Payload is the result of a successful sign-in, sign-up or renewal.
type Payload struct {
	AccessCredential  string
	RenewalCredential string
	ExpiresAt         time.Time
	Identity          *Identity
	Customer          *CustomerSummary
	Permissions       []string
}

func (p Payload) validate(now time.Time) error {
	if p.AccessCredential == "" {
		return fmt.Errorf("%w: empty access credential", ErrInvalidPayload)
	}
	if p.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: missing expiry", ErrInvalidPayload)
	}
	if !p.ExpiresAt.After(now) {
		return fmt.Errorf("%w: expiry %s is not in the future", ErrInvalidPayload, p.ExpiresAt.Format(time.RFC3339))
	}
	if p.Identity == nil || p.Identity.ID == "" {
		return fmt.Errorf("%w: missing identity", ErrInvalidPayload)
	}
	return nil
}

// Snapshot is a point-in-time copy of the session. Credentials are excluded
// from JSON so a snapshot can be logged or served as-is.
type Snapshot struct {
	AccessCredential  string           `json:"-"`
	RenewalCredential string           `json:"-"`
	ExpiresAt         time.Time        `json:"expiresAt,omitempty"`
	Identity          *Identity        `json:"identity,omitempty"`
	Customer          *CustomerSummary `json:"customer,omitempty"`
	Permissions       permission.Set   `json:"permissions"`
	IsAuthenticated   bool             `json:"isAuthenticated"`
	IsInitializing    bool             `json:"isInitializing"`
	Epoch             uint64           `json:"epoch"`
}

// TenantID returns the identity's tenant, or "" when signed out.
func (s Snapshot) TenantID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.TenantID
}
