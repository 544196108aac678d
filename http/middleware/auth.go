package middleware

import (
	"context"
	"net/http"
	"strings"

	"exam-portal/auth"
	"exam-portal/http/response"
	"exam-portal/logger"
)

type ctxKey int

const claimsKey ctxKey = iota

// RequireRole rejects requests without a valid bearer session for role.
func RequireRole(sessions *auth.Sessions, role string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if header == "" || token == header {
				response.Fail(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			claims, err := sessions.Verify(token, role)
			if err != nil {
				logger.Warn("[AUTH] %s %s rejected: %v", r.Method, r.URL.Path, err)
				response.Error(w, err)
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		}
	}
}

// ClaimsFrom returns the session claims stored by RequireRole.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}
