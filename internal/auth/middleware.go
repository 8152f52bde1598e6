package auth

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/database/models"
	"gorm.io/gorm"
)

type contextKey string

const UserContextKey contextKey = "user"

func loadUser(db *gorm.DB, id uint) *models.User {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil
	}
	if !user.IsActive {
		return nil
	}
	return &user
}

// authenticate resolves the request's user from the scs session or,
// failing that, from a Bearer JWT. Returns nil when unauthenticated.
func authenticate(r *http.Request, db *gorm.DB, sessionManager *scs.SessionManager, cfg *config.Config) *models.User {
	if sessionManager != nil {
		if id := sessionManager.GetInt(r.Context(), "user_id"); id > 0 {
			if user := loadUser(db, uint(id)); user != nil {
				return user
			}
		}
	}

	if token := BearerToken(r.Header.Get("Authorization")); token != "" {
		if id, err := ParseJWT(token, cfg.JWTSecret); err == nil {
			return loadUser(db, id)
		}
	}

	return nil
}

// RequireAuth rejects unauthenticated requests with 401. The resolved
// user is placed in the request context for handlers.
func RequireAuth(db *gorm.DB, sessionManager *scs.SessionManager, cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := authenticate(r, db, sessionManager, cfg)
			if user == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":"Authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the user when credentials are present but never
// rejects the request.
func OptionalAuth(db *gorm.DB, sessionManager *scs.SessionManager, cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := authenticate(r, db, sessionManager, cfg); user != nil {
				ctx := context.WithValue(r.Context(), UserContextKey, user)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser returns the authenticated user from the request context, or nil.
func GetUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}
