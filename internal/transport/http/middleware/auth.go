package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"payrolladmin/internal/domain/auth"
)

// TokenVerifier validates identity provider tokens; *auth.JWKSVerifier
// satisfies it.
type TokenVerifier interface {
	Parse(ctx context.Context, token string) (*auth.Claims, error)
}

// Auth attaches the caller to the context when a valid bearer token is
// present. Requests without one pass through; RequireUser and
// RequirePermission reject them later.
func Auth(secret string, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parseClaims(r.Context(), secret, verifier, token)
			if err != nil {
				slog.Debug("bearer token rejected", "requestId", GetRequestID(r.Context()), "err", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}

func parseClaims(ctx context.Context, secret string, verifier TokenVerifier, token string) (*auth.Claims, error) {
	if verifier != nil {
		claims, err := verifier.Parse(ctx, token)
		if err == nil || secret == "" {
			return claims, err
		}
	}
	return auth.ParseToken(secret, token)
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
