package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/contextx"
	"github.com/66gu1/authsession/internal/infrastructure/httpx"
	"github.com/66gu1/authsession/internal/infrastructure/logger"
)

type AccessVerifier interface {
	VerifyAccess(ctx context.Context, rawAccessToken string) (session.Principal, error)
}

// AuthMiddleware verifies the bearer access token and puts the subject and
// session id into the request context. It never consults the session store.
func AuthMiddleware(verifier AccessVerifier) func(http.Handler) http.Handler {
	return authMiddleware(verifier, true)
}

// OptionalAuthMiddleware is AuthMiddleware for routes that also serve
// anonymous callers. A present but invalid token is still rejected.
func OptionalAuthMiddleware(verifier AccessVerifier) func(http.Handler) http.Handler {
	return authMiddleware(verifier, false)
}

func authMiddleware(verifier AccessVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				err := apperr.ErrUnauthorized().WithDetail("missing or malformed Authorization header")
				logger.Error(ctx, err).
					Msg("session.AuthMiddleware: invalid Authorization header")
				httpx.ReturnError(ctx, w, err)
				return
			}

			principal, err := verifier.VerifyAccess(ctx, strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				httpx.ReturnError(ctx, w, err)
				return
			}

			ctx = contextx.SetSubject(ctx, principal.Subject)
			ctx = contextx.SetSessionID(ctx, principal.SessionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
