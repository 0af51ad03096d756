// internal/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// JWTAuthMiddleware resolves the bearer token to a principal id and places
// it on the request context. Requests without a valid token never reach next.
func JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w, "missing or invalid Authorization header")
			return
		}

		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		claims, err := ValidateToken(tokenStr)
		if err != nil {
			unauthorized(w, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + msg + `"}`))
}

func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// PrincipalFrom extracts the authenticated principal from ctx
func PrincipalFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(PrincipalKey).(string)
	return p, ok && p != ""
}
