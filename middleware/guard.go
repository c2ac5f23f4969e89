package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/tokenauth"
)

// Verifier validates access tokens. *tokenauth.Engine satisfies it.
type Verifier interface {
	ValidateAccessToken(token string) (tokenauth.IdentityClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims attached by Guard or Optional.
func ClaimsFromContext(ctx context.Context) (tokenauth.IdentityClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(tokenauth.IdentityClaims)
	return claims, ok
}

// WithClaims attaches claims to ctx. It is exported for handlers tested
// without a Guard in front of them.
func WithClaims(ctx context.Context, claims tokenauth.IdentityClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := verifier.ValidateAccessToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tokenauth"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
