package goSession

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/goSession/graphql"
)

// HTTPClient returns a client whose every request carries the session
// credentials and recovers from credential faults by renewing and
// replaying. Use [WithOperation] and [WithTenantID] on request contexts.
func (e *Engine) HTTPClient() *http.Client {
	return e.httpClient
}

// Transport is the round tripper behind HTTPClient, for callers that bring
// their own client.
func (e *Engine) Transport() http.RoundTripper {
	return e.transport
}

// ConnectInterceptor applies the same credential policy to connect RPC
// clients.
func (e *Engine) ConnectInterceptor() connect.Interceptor {
	return e.interceptor
}

// GraphQL returns a data-operation client for Config.Endpoint.URL that runs
// over HTTPClient. The operation name of each request names the call.
func (e *Engine) GraphQL() *graphql.Client {
	return e.gql
}

// TokenSource exposes the access credential to oauth2-aware clients. An
// expired credential is renewed through the shared coordinator using ctx.
func (e *Engine) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, e: e}
}

type sessionTokenSource struct {
	ctx context.Context
	e   *Engine
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	snap := ts.e.store.Snapshot()
	if !snap.IsAuthenticated && snap.RenewalCredential == "" {
		return nil, ErrNotAuthenticated
	}
	if snap.AccessCredential == "" || !ts.e.clock.Now().Before(snap.ExpiresAt) {
		if !ts.e.renew(ts.ctx) {
			return nil, ErrNotAuthenticated
		}
		snap = ts.e.store.Snapshot()
	}
	return &oauth2.Token{
		AccessToken: snap.AccessCredential,
		TokenType:   "Bearer",
		Expiry:      snap.ExpiresAt,
	}, nil
}
