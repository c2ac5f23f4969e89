package middleware

import (
	"net/http"

	"github.com/MrEthical07/tokenauth/permission"
)

// RequirePermission guards the handler like Guard and then demands every
// listed permission. Missing permissions yield 403.
func RequirePermission(verifier Verifier, perms ...permission.Permission) func(http.Handler) http.Handler {
	guard := Guard(verifier)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			for _, p := range perms {
				if !claims.HasPermission(p) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		}))
	}
}
