package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/albertstanley/messenger-backend/internal/auth"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// claimsFromContext extracts auth claims from the context, if present.
func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

// requireAuth enforces JWT authentication and injects the verified claims
// into the request context. The token comes from the Authorization header,
// or from a "token" query parameter for websocket clients that cannot set
// headers.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if h := r.Header.Get("Authorization"); h != "" {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer"))
		}
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
