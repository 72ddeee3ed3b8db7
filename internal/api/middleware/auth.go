package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jiangkunoa/chat-practise/internal/models"
	"github.com/jiangkunoa/chat-practise/internal/store"
	"github.com/jiangkunoa/chat-practise/internal/token"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves the Authorization header to a user for
// authenticated endpoints.
type AuthMiddleware struct {
	store  store.DataStore
	tokens *token.Manager
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(st store.DataStore, tokens *token.Manager) *AuthMiddleware {
	return &AuthMiddleware{store: st, tokens: tokens}
}

// RequireAuth verifies the bearer token and loads the account it names.
// The header may carry the raw token or the "Bearer <token>" form.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		raw = strings.TrimPrefix(raw, "Bearer ")
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := m.store.GetUser(r.Context(), claims.Sub)
		if err != nil || user == nil {
			jsonError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
