package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/graphql"
	"github.com/MrEthical07/goSession/jwt"
)

const payloadFields = `accessToken refreshToken expiresAt
    user { id tenantId email firstName lastName name role mfaEnabled isEmailVerified }
    customer { id code name }
    permissions`

const (
	signInMutation = `mutation SignIn($input: SignInInput!) {
  signIn(input: $input) { ` + payloadFields + ` }
}`
	signUpMutation = `mutation SignUp($input: SignUpInput!) {
  signUp(input: $input) { ` + payloadFields + ` }
}`
	refreshMutation = `mutation RefreshSession($refreshToken: String!) {
  refreshSession(refreshToken: $refreshToken) { ` + payloadFields + ` }
}`
	signOutMutation = `mutation SignOut {
  signOut
}`
)

// SignInInput carries sign-in credentials. MFACode is optional.
type SignInInput struct {
	Email    string
	Password string
	MFACode  string
}

// SignUpInput registers a user under an existing customer.
type SignUpInput struct {
	CustomerCode string
	Email        string
	Password     string
	FirstName    string
	LastName     string
}

type sessionPayload struct {
	AccessToken  string                      `json:"accessToken"`
	RefreshToken string                      `json:"refreshToken"`
	ExpiresAt    string                      `json:"expiresAt"`
	User         *credential.Identity        `json:"user"`
	Customer     *credential.CustomerSummary `json:"customer"`
	Permissions  []string                    `json:"permissions"`
}

// Option configures a [Client].
type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l.With().Str("component", "authapi").Logger()
	}
}

// WithInspector sets the decoder used when the server omits expiresAt.
func WithInspector(i *jwt.Inspector) Option {
	return func(c *Client) {
		if i != nil {
			c.inspector = i
		}
	}
}

// Client runs the authentication mutations.
type Client struct {
	endpoint  string
	http      *http.Client
	gql       *graphql.Client
	inspector *jwt.Inspector
	log       zerolog.Logger
}

// NewClient posts to endpoint through hc (http.DefaultClient when nil).
func NewClient(endpoint string, hc *http.Client, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("authapi: empty endpoint")
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &Client{
		endpoint: endpoint,
		http:     hc,
		gql:      graphql.NewClient(endpoint, hc),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.inspector == nil {
		insp, err := jwt.NewInspector(0)
		if err != nil {
			return nil, err
		}
		c.inspector = insp
	}
	return c, nil
}

// SignIn exchanges e-mail and password for a session.
func (c *Client) SignIn(ctx context.Context, in SignInInput) (credential.Payload, error) {
	input := map[string]any{
		"email":    strings.TrimSpace(in.Email),
		"password": in.Password,
	}
	if in.MFACode != "" {
		input["mfaCode"] = in.MFACode
	}

	var out struct {
		SignIn *sessionPayload `json:"signIn"`
	}
	err := c.gql.Do(ctx, graphql.Request{
		Query:         signInMutation,
		OperationName: "SignIn",
		Variables:     map[string]any{"input": input},
	}, &out)
	if err != nil {
		return credential.Payload{}, mapSignInError(err)
	}
	return c.toPayload(out.SignIn)
}

// SignUp creates an account and returns its first session.
func (c *Client) SignUp(ctx context.Context, in SignUpInput) (credential.Payload, error) {
	var out struct {
		SignUp *sessionPayload `json:"signUp"`
	}
	err := c.gql.Do(ctx, graphql.Request{
		Query:         signUpMutation,
		OperationName: "SignUp",
		Variables: map[string]any{"input": map[string]any{
			"customerCode": strings.TrimSpace(in.CustomerCode),
			"email":        strings.TrimSpace(in.Email),
			"password":     in.Password,
			"firstName":    in.FirstName,
			"lastName":     in.LastName,
		}},
	}, &out)
	if err != nil {
		return credential.Payload{}, mapSignInError(err)
	}
	return c.toPayload(out.SignUp)
}

// Renew rotates both credentials.
func (c *Client) Renew(ctx context.Context, renewalCredential string) (credential.Payload, error) {
	var out struct {
		RefreshSession *sessionPayload `json:"refreshSession"`
	}
	err := c.gql.Do(ctx, graphql.Request{
		Query:         refreshMutation,
		OperationName: "RefreshSession",
		Variables:     map[string]any{"refreshToken": renewalCredential},
	}, &out)
	if err != nil {
		return credential.Payload{}, mapRenewError(err)
	}
	return c.toPayload(out.RefreshSession)
}

// SignOut revokes the renewal credential bound to accessCredential.
func (c *Client) SignOut(ctx context.Context, accessCredential string) error {
	if accessCredential == "" {
		return nil
	}
	gql := graphql.NewClient(c.endpoint, c.http, graphql.WithHeader("Authorization", "Bearer "+accessCredential))
	return gql.Do(ctx, graphql.Request{Query: signOutMutation, OperationName: "SignOut"}, nil)
}

func (c *Client) toPayload(p *sessionPayload) (credential.Payload, error) {
	if p == nil {
		return credential.Payload{}, fmt.Errorf("%w: empty result", ErrMalformedPayload)
	}
	if p.AccessToken == "" || p.RefreshToken == "" || p.User == nil {
		return credential.Payload{}, fmt.Errorf("%w: missing credential or user", ErrMalformedPayload)
	}

	expiresAt, err := c.expiry(p)
	if err != nil {
		return credential.Payload{}, err
	}
	return credential.Payload{
		AccessCredential:  p.AccessToken,
		RenewalCredential: p.RefreshToken,
		ExpiresAt:         expiresAt,
		Identity:          p.User,
		Customer:          p.Customer,
		Permissions:       p.Permissions,
	}, nil
}

func (c *Client) expiry(p *sessionPayload) (time.Time, error) {
	if p.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, p.ExpiresAt)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: expiresAt: %v", ErrMalformedPayload, err)
		}
		return t, nil
	}
	exp, err := c.inspector.ExpiresAt(p.AccessToken)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: no expiresAt and %v", ErrMalformedPayload, err)
	}
	c.log.Debug().Time("expires_at", exp).Msg("expiry taken from access credential")
	return exp, nil
}
