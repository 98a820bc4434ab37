package account

import (
	"context"
	"errors"
	"net/http"

	"Storefront/pkg/kit"
)

type ctxKey string

const claimsKey ctxKey = "account"

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}

func contextWithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// Identify attaches the caller's claims when a bearer token is present.
// Requests without a token pass through anonymously; a bad token is 401.
func Identify(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := svc.Authenticate(r.Context(), tok)
			switch {
			case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrLoggedOut):
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			case err != nil:
				kit.WriteError(w, r, http.StatusServiceUnavailable, "session store unavailable", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithClaims(r.Context(), claims)))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFunc gives signed-in shoppers a cart keyed by account and falls
// back to the anonymous resolver otherwise.
func SessionFunc(fallback func(*http.Request) (string, bool)) func(*http.Request) (string, bool) {
	return func(r *http.Request) (string, bool) {
		if c, ok := ClaimsFromContext(r.Context()); ok {
			return "user-" + c.AccountID, true
		}
		return fallback(r)
	}
}
