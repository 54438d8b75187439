package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey struct{}

var identityKey contextKey

// IdentityFromContext returns the authenticated identity attached by
// RequireAuth, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid session cookie before they
// reach business logic. On success the identity is attached to the request
// context.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil {
			denyJSON(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		identity, ok := m.Lookup(cookie.Value)
		if !ok {
			denyJSON(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated but non-admin sessions. Must run after
// RequireAuth.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			denyJSON(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !identity.Admin {
			denyJSON(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func denyJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
