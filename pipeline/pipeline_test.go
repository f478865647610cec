package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu     sync.Mutex
	access string
	tenant string
}

func (s *fakeSession) AccessCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *fakeSession) TenantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenant
}

func (s *fakeSession) setAccess(v string) {
	s.mu.Lock()
	s.access = v
	s.mu.Unlock()
}

// scriptedRenewer rotates the session credential on success. results are
// consumed in order; once exhausted the last value repeats.
type scriptedRenewer struct {
	session *fakeSession
	results []bool
	calls   atomic.Int32
}

func (r *scriptedRenewer) Renew(context.Context) bool {
	n := int(r.calls.Add(1))
	ok := r.results[len(r.results)-1]
	if n <= len(r.results) {
		ok = r.results[n-1]
	}
	if ok {
		r.session.setAccess(fmt.Sprintf("A%d", n+1))
	}
	return ok
}

type recordedHooks struct {
	mu         sync.Mutex
	replays    []int
	signOuts   []*Fault
	violations []*Fault
	injected   int
}

func (h *recordedHooks) hooks() Hooks {
	return Hooks{
		OnInject: func(context.Context) {
			h.mu.Lock()
			h.injected++
			h.mu.Unlock()
		},
		OnReplay: func(_ context.Context, _ *Fault, attempt int) {
			h.mu.Lock()
			h.replays = append(h.replays, attempt)
			h.mu.Unlock()
		},
		OnSignOut: func(_ context.Context, f *Fault) {
			h.mu.Lock()
			h.signOuts = append(h.signOuts, f)
			h.mu.Unlock()
		},
		OnViolation: func(_ context.Context, f *Fault) {
			h.mu.Lock()
			h.violations = append(h.violations, f)
			h.mu.Unlock()
		},
	}
}

type seenRequest struct {
	auth   string
	tenant string
	reqID  string
	body   string
}

// gqlServer answers every request with respond(n) where n counts from 1.
func gqlServer(t *testing.T, respond func(n int, w http.ResponseWriter)) (*httptest.Server, func() []seenRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []seenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, seenRequest{
			auth:   r.Header.Get("Authorization"),
			tenant: r.Header.Get("X-Tenant-ID"),
			reqID:  r.Header.Get("X-Request-ID"),
			body:   string(body),
		})
		n := len(seen)
		mu.Unlock()
		respond(n, w)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []seenRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]seenRequest(nil), seen...)
	}
}

func writeGQL(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

const (
	okBody     = `{"data":{"quotes":[{"id":"q1"}]}}`
	unauthBody = `{"errors":[{"message":"token expired","extensions":{"code":"UNAUTHENTICATED"}}]}`
	forbidBody = `{"errors":[{"message":"tenant mismatch","extensions":{"code":"FORBIDDEN"}}]}`
	otherBody  = `{"errors":[{"message":"bad input","extensions":{"code":"BAD_USER_INPUT"}}]}`
)

func newClient(session *fakeSession, renewer Renewer, hooks Hooks, maxRetries int) *http.Client {
	var ids atomic.Int32
	policy := NewPolicy(session, renewer, hooks, Config{MaxRetries: maxRetries},
		WithRequestIDs(func() string { return fmt.Sprintf("req-%d", ids.Add(1)) }))
	return &http.Client{Transport: NewTransport(nil, policy)}
}

func post(t *testing.T, ctx context.Context, c *http.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{"query":"{quotes{id}}"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestInjectionHeaders(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) { writeGQL(w, okBody) })
	session := &fakeSession{access: "A1", tenant: "t1"}
	hooks := &recordedHooks{}
	c := newClient(session, &scriptedRenewer{session: session, results: []bool{true}}, hooks.hooks(), 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	require.JSONEq(t, okBody, readBody(t, resp))

	resp, err = post(t, WithTenantID(context.Background(), "t9"), c, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	got := seen()
	require.Len(t, got, 2)
	require.Equal(t, "Bearer A1", got[0].auth)
	require.Equal(t, "t1", got[0].tenant)
	require.Equal(t, "req-1", got[0].reqID)
	require.Equal(t, "t9", got[1].tenant)
	require.Equal(t, 2, hooks.injected)
}

func TestInjectionWithoutSession(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) { writeGQL(w, okBody) })
	session := &fakeSession{}
	c := newClient(session, &scriptedRenewer{session: session, results: []bool{false}}, Hooks{}, 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Empty(t, seen()[0].auth)
	require.Empty(t, seen()[0].tenant)
}

func TestUnauthenticatedRenewsAndReplaysOnce(t *testing.T) {
	srv, seen := gqlServer(t, func(n int, w http.ResponseWriter) {
		if n == 1 {
			writeGQL(w, unauthBody)
			return
		}
		writeGQL(w, okBody)
	})
	session := &fakeSession{access: "A1", tenant: "t1"}
	renewer := &scriptedRenewer{session: session, results: []bool{true}}
	hooks := &recordedHooks{}
	c := newClient(session, renewer, hooks.hooks(), 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	require.JSONEq(t, okBody, readBody(t, resp))

	got := seen()
	require.Len(t, got, 2)
	require.Equal(t, "Bearer A1", got[0].auth)
	require.Equal(t, "Bearer A2", got[1].auth)
	require.Equal(t, got[0].body, got[1].body)
	require.NotEqual(t, got[0].reqID, got[1].reqID)
	require.EqualValues(t, 1, renewer.calls.Load())
	require.Equal(t, []int{1}, hooks.replays)
	require.Empty(t, hooks.signOuts)
}

func TestUnauthenticatedRetryCapWithLastResortFailure(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) { writeGQL(w, unauthBody) })
	session := &fakeSession{access: "A1", tenant: "t1"}
	// Two renewals succeed, the last-resort one fails.
	renewer := &scriptedRenewer{session: session, results: []bool{true, true, false}}
	hooks := &recordedHooks{}
	c := newClient(session, renewer, hooks.hooks(), 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrSignedOut)

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, CodeUnauthenticated, fault.Code)

	require.Len(t, seen(), 3, "original call plus at most two replays")
	require.EqualValues(t, 3, renewer.calls.Load())
	require.Equal(t, []int{1, 2}, hooks.replays)
	require.Len(t, hooks.signOuts, 1)
}

func TestUnauthenticatedRetryCapWithLastResortSuccess(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) { writeGQL(w, unauthBody) })
	session := &fakeSession{access: "A1", tenant: "t1"}
	renewer := &scriptedRenewer{session: session, results: []bool{true}}
	hooks := &recordedHooks{}
	c := newClient(session, renewer, hooks.hooks(), 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	require.JSONEq(t, unauthBody, readBody(t, resp))

	require.Len(t, seen(), 3, "no third replay")
	require.EqualValues(t, 3, renewer.calls.Load())
	require.Empty(t, hooks.signOuts)
}

func TestRenewalFailureSignsOutWithoutReplay(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	session := &fakeSession{access: "A1", tenant: "t1"}
	renewer := &scriptedRenewer{session: session, results: []bool{false}}
	hooks := &recordedHooks{}
	c := newClient(session, renewer, hooks.hooks(), 2)

	_, err := post(t, context.Background(), c, srv.URL)
	require.ErrorIs(t, err, ErrSignedOut)

	var signedOut *SignedOutError
	require.True(t, errors.As(err, &signedOut))
	require.Equal(t, http.StatusUnauthorized, signedOut.Fault.StatusCode)

	require.Len(t, seen(), 1)
	require.Len(t, hooks.signOuts, 1)
	require.Empty(t, hooks.replays)
}

func TestForbiddenIsNeverReplayed(t *testing.T) {
	for attempt := 0; attempt <= 3; attempt++ {
		t.Run(fmt.Sprintf("attempt=%d", attempt), func(t *testing.T) {
			srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) { writeGQL(w, forbidBody) })
			session := &fakeSession{access: "A1", tenant: "t1"}
			renewer := &scriptedRenewer{session: session, results: []bool{true}}
			hooks := &recordedHooks{}
			c := newClient(session, renewer, hooks.hooks(), 2)

			ctx := WithOperation(withAttempt(context.Background(), attempt), "QuoteDetail")
			resp, err := post(t, ctx, c, srv.URL)
			require.NoError(t, err)
			require.JSONEq(t, forbidBody, readBody(t, resp))

			require.Len(t, seen(), 1)
			require.Zero(t, renewer.calls.Load())
			require.Len(t, hooks.violations, 1)
			require.Equal(t, "QuoteDetail", hooks.violations[0].Operation)
			require.Equal(t, "tenant mismatch", hooks.violations[0].Message)
			require.Empty(t, hooks.signOuts)
		})
	}
}

func TestHTTPForbiddenStatus(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	session := &fakeSession{access: "A1"}
	hooks := &recordedHooks{}
	c := newClient(session, &scriptedRenewer{session: session, results: []bool{true}}, hooks.hooks(), 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	require.Len(t, seen(), 1)
	require.Len(t, hooks.violations, 1)
}

func TestOtherFaultsPropagateUnchanged(t *testing.T) {
	srv, seen := gqlServer(t, func(n int, w http.ResponseWriter) {
		if n == 1 {
			writeGQL(w, otherBody)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	session := &fakeSession{access: "A1"}
	renewer := &scriptedRenewer{session: session, results: []bool{true}}
	hooks := &recordedHooks{}
	c := newClient(session, renewer, hooks.hooks(), 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	require.JSONEq(t, otherBody, readBody(t, resp))

	resp, err = post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	require.Len(t, seen(), 2)
	require.Zero(t, renewer.calls.Load())
	require.Empty(t, hooks.violations)
}

func TestZeroRetriesOnlyUsesLastResort(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) { writeGQL(w, unauthBody) })
	session := &fakeSession{access: "A1"}
	renewer := &scriptedRenewer{session: session, results: []bool{false}}
	hooks := &recordedHooks{}
	c := newClient(session, renewer, hooks.hooks(), 0)

	_, err := post(t, context.Background(), c, srv.URL)
	require.ErrorIs(t, err, ErrSignedOut)
	require.Len(t, seen(), 1)
	require.EqualValues(t, 1, renewer.calls.Load())
}

func TestDecideTable(t *testing.T) {
	session := &fakeSession{access: "A1"}
	cases := []struct {
		name     string
		kind     Kind
		attempt  int
		renew    bool
		canceled bool
		want     Action
	}{
		{"unauth first attempt renewed", KindUnauthenticated, 0, true, false, ActionReplay},
		{"unauth second attempt renewed", KindUnauthenticated, 1, true, false, ActionReplay},
		{"unauth exhausted last resort ok", KindUnauthenticated, 2, true, false, ActionPropagate},
		{"unauth exhausted last resort failed", KindUnauthenticated, 2, false, false, ActionSignedOut},
		{"unauth renewal failed", KindUnauthenticated, 0, false, false, ActionSignedOut},
		{"unauth renewal failed caller gone", KindUnauthenticated, 0, false, true, ActionPropagate},
		{"unauth last resort failed caller gone", KindUnauthenticated, 2, false, true, ActionPropagate},
		{"forbidden", KindForbidden, 0, true, false, ActionPropagate},
		{"other", KindOther, 0, true, false, ActionPropagate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := &recordedHooks{}
			p := NewPolicy(session, RenewerFunc(func(context.Context) bool { return tc.renew }), hooks.hooks(), Config{MaxRetries: 2})
			ctx := withAttempt(context.Background(), tc.attempt)
			if tc.canceled {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}
			got := p.Decide(ctx, &Fault{Kind: tc.kind})
			require.Equal(t, tc.want, got)
			if tc.want != ActionSignedOut {
				require.Empty(t, hooks.signOuts)
			}
		})
	}
}

// blockingRenewer mirrors a shared renewal that outlives its callers: it
// reports failure to any caller whose context ends first.
type blockingRenewer struct {
	release chan struct{}
	calls   atomic.Int32
}

func (r *blockingRenewer) Renew(ctx context.Context) bool {
	r.calls.Add(1)
	select {
	case <-ctx.Done():
		return false
	case <-r.release:
		return false
	}
}

func TestCallerDeadlineDuringRenewalDoesNotSignOut(t *testing.T) {
	srv, seen := gqlServer(t, func(_ int, w http.ResponseWriter) { writeGQL(w, unauthBody) })
	session := &fakeSession{access: "A1", tenant: "t1"}
	renewer := &blockingRenewer{release: make(chan struct{})}
	defer close(renewer.release)
	hooks := &recordedHooks{}
	c := newClient(session, renewer, hooks.hooks(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	resp, err := post(t, ctx, c, srv.URL)
	require.Nil(t, resp)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, ErrSignedOut)

	require.Len(t, seen(), 1)
	require.EqualValues(t, 1, renewer.calls.Load())
	require.Empty(t, hooks.signOuts)
	require.Empty(t, hooks.replays)
}

type epochSession struct {
	fakeSession
	epoch atomic.Uint64
}

func (s *epochSession) Epoch() uint64 { return s.epoch.Load() }

func TestSignOutCarriesRenewalEpoch(t *testing.T) {
	session := &epochSession{fakeSession: fakeSession{access: "A1"}}
	session.epoch.Store(7)

	var got uint64
	var ok bool
	renewer := RenewerFunc(func(context.Context) bool {
		session.epoch.Store(8)
		return false
	})
	hooks := Hooks{OnSignOut: func(ctx context.Context, _ *Fault) { got, ok = RenewalEpoch(ctx) }}
	p := NewPolicy(session, renewer, hooks, Config{MaxRetries: 2})

	require.Equal(t, ActionSignedOut, p.Decide(context.Background(), &Fault{Kind: KindUnauthenticated}))
	require.True(t, ok)
	require.EqualValues(t, 7, got, "epoch observed before the renewal started")

	_, ok = RenewalEpoch(context.Background())
	require.False(t, ok)
}

func TestLargeResponsePassesThroughWhole(t *testing.T) {
	orig := maxInspectBytes
	maxInspectBytes = 64
	t.Cleanup(func() { maxInspectBytes = orig })

	large := `{"data":{"blob":"` + strings.Repeat("x", 4096) + `"}}`
	srv, _ := gqlServer(t, func(n int, w http.ResponseWriter) {
		if n == 1 {
			writeGQL(w, large)
			return
		}
		writeGQL(w, forbidBody)
	})
	session := &fakeSession{access: "A1"}
	hooks := &recordedHooks{}
	c := newClient(session, &scriptedRenewer{session: session, results: []bool{true}}, hooks.hooks(), 2)

	resp, err := post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	require.Equal(t, large, readBody(t, resp))

	// Short bodies are still inspected.
	resp, err = post(t, context.Background(), c, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Len(t, hooks.violations, 1)
}

type trackedBody struct {
	io.Reader
	closed atomic.Int32
}

func (b *trackedBody) Close() error {
	b.closed.Add(1)
	return nil
}

func TestRoundTripClosesRequestBody(t *testing.T) {
	srv, seen := gqlServer(t, func(n int, w http.ResponseWriter) {
		if n == 1 {
			writeGQL(w, unauthBody)
			return
		}
		writeGQL(w, okBody)
	})
	session := &fakeSession{access: "A1"}
	renewer := &scriptedRenewer{session: session, results: []bool{true}}
	policy := NewPolicy(session, renewer, Hooks{}, Config{MaxRetries: 2})
	tr := NewTransport(nil, policy)

	const payload = `{"query":"{quotes{id}}"}`
	for _, withGetBody := range []bool{true, false} {
		body := &trackedBody{Reader: strings.NewReader(payload)}
		req, err := http.NewRequest(http.MethodPost, srv.URL, body)
		require.NoError(t, err)
		if withGetBody {
			req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(payload)), nil }
		}

		resp, err := tr.RoundTrip(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.EqualValues(t, 1, body.closed.Load(), "GetBody=%v", withGetBody)
	}

	for _, r := range seen() {
		require.Equal(t, payload, r.body)
	}
}

func TestClassify(t *testing.T) {
	require.Equal(t, KindUnauthenticated, Classify("UNAUTHENTICATED"))
	require.Equal(t, KindForbidden, Classify("FORBIDDEN"))
	require.Equal(t, KindOther, Classify("INTERNAL_SERVER_ERROR"))
	require.Equal(t, KindOther, Classify(""))
}
