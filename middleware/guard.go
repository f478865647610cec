package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goSession/credential"
)

// Session is the engine surface the guards need. *goSession.Engine
// satisfies it.
type Session interface {
	Ready() <-chan struct{}
	Snapshot() credential.Snapshot
	HasPermission(name string) bool
}

type snapshotContextKey struct{}

// SnapshotFromContext returns the session snapshot a guard attached to the
// request.
func SnapshotFromContext(ctx context.Context) (credential.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(credential.Snapshot)
	return snap, ok
}

// RequireSession gates protected pages. It waits for session
// initialization to resolve, then redirects unauthenticated requests to
// signInPath with the original path in the "next" query parameter.
func RequireSession(session Session, signInPath string) func(http.Handler) http.Handler {
	return guard(session, func(w http.ResponseWriter, r *http.Request) {
		target := signInPath
		if r.Method == http.MethodGet {
			target += "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// RequireSessionAPI is RequireSession for machine clients: it answers 401
// instead of redirecting.
func RequireSessionAPI(session Session) func(http.Handler) http.Handler {
	return guard(session, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func guard(session Session, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session == nil {
				reject(w, r)
				return
			}

			select {
			case <-session.Ready():
			case <-r.Context().Done():
				http.Error(w, "session still initializing", http.StatusServiceUnavailable)
				return
			}

			snap := session.Snapshot()
			if !snap.IsAuthenticated {
				reject(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), snapshotContextKey{}, snap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
