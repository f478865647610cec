package middleware

import (
	"net/http"
)

// RequirePermission answers 403 unless the signed-in user was granted
// name. Chain it after RequireSession; the server still enforces the rule.
func RequirePermission(session Session, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session == nil || !session.HasPermission(name) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
