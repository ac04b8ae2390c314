package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/errandly/backend/internal/auth"
)

type contextKey int

const claimsKey contextKey = iota

// SessionVerifier checks a bearer token and returns its claims.
// Satisfied by service.AccountService.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (auth.Claims, error)
}

// NewAuthenticator returns a middleware that requires a valid
// "Authorization: Bearer <token>" header. On success the token's claims
// are stored in the request context; otherwise the request is rejected
// with 401 before reaching the next handler.
func NewAuthenticator(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by NewAuthenticator.
// ok is false for requests that did not pass through it.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
