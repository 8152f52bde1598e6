package auth

import (
	"net/http"
)

// RequireAdmin requires an authenticated user with the admin role.
// Expects RequireAuth to run first; returns 403 otherwise.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":"Authentication required"}`))
				return
			}

			if !user.IsAdmin() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"success":false,"error":"Admin access required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
