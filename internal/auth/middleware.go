package auth

import (
	"net/http"
	"strings"

	"github.com/nusacamp/backend-glamping/internal/common"
)

// Middleware guards routes that need an authenticated user.
type Middleware struct {
	Service *Service
}

// RequireAuth rejects requests without a valid bearer token and stores
// the authenticated user id on the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials", nil)
			return
		}
		userID, err := m.Service.ParseAccessToken(token)
		if err != nil {
			common.RenderError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}
