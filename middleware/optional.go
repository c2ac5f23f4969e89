package middleware

import (
	"net/http"
)

// Optional attaches claims for a valid bearer token and otherwise serves
// the request anonymously. A present but invalid token is still rejected
// so a stale client learns to refresh.
func Optional(verifier Verifier) func(http.Handler) http.Handler {
	guard := Guard(verifier)
	return func(next http.Handler) http.Handler {
		guarded := guard(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
