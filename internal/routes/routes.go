package routes

import (
	"net/http"
	"time"

	csrf "filippo.io/csrf/gorilla"
	"github.com/alexedwards/scs/v2"
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/handlers"
	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/middleware"
	"github.com/artfolio/artfolio/internal/notifications"
	"github.com/artfolio/artfolio/internal/passwordreset"
	"github.com/artfolio/artfolio/internal/storage"
	"github.com/artfolio/artfolio/internal/uploads"
)

// Deps carries everything route setup needs. Keeps the Setup signature
// stable as collaborators accumulate.
type Deps struct {
	DB             *gorm.DB
	Cfg            *config.Config
	Backend        storage.Backend
	SessionManager *scs.SessionManager
	Notifications  *notifications.Service
	PasswordReset  *passwordreset.Service
	Tracker        *uploads.Tracker
	Feed           *uploads.Feed
	Version        string
}

// Setup wires all routes and middleware onto r.
//
// CSRF uses filippo.io/csrf, which validates Fetch Metadata headers
// (Sec-Fetch-Site, Origin) rather than double-submit tokens. Non-browser
// clients without those headers pass through; they authenticate with a
// bearer token and never auto-attach cookies, so they are not CSRF
// vectors. It applies only to browser-facing state-changing routes.
func Setup(r chi.Router, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Cfg, deps.SessionManager, deps.Notifications)
	resetHandler := handlers.NewPasswordResetHandler(deps.PasswordReset, deps.Cfg)
	userHandler := handlers.NewUserHandler(deps.DB, deps.Cfg, deps.Notifications)
	galleryHandler := handlers.NewGalleryHandler(deps.DB, deps.Cfg, deps.Backend, deps.Tracker)
	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Feed)
	uploadHandler := handlers.NewUploadHandler(deps.Tracker)
	statsHandler := handlers.NewStatsHandler(deps.DB, deps.Notifications)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Backend, deps.Version)

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.SecurityHeaders)

	// 5 attempts per 15 minutes per IP on credential endpoints
	authRateLimiter := tollbooth.NewLimiter(5.0/15.0, &limiter.ExpirableOptions{
		DefaultExpirationTTL: 15 * time.Minute,
	})
	authRateLimiter.SetMessage("Too many requests. Please try again later.")

	var csrfMiddleware func(http.Handler) http.Handler
	if deps.Cfg.CSRFEnabled {
		csrfMiddleware = csrf.Protect(
			[]byte(deps.Cfg.SessionSecret),
			csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Warn("csrf validation failed",
					"reason", csrf.FailureReason(r),
					"method", r.Method,
					"path", r.URL.Path,
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
			})),
		)
	} else {
		csrfMiddleware = func(next http.Handler) http.Handler {
			return next
		}
	}

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"Not found"}`))
	})

	// Public image serving
	r.Get("/images/*", galleryHandler.ServeImage)

	// Credential endpoints, rate limited
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Use(func(next http.Handler) http.Handler {
			return tollbooth.LimitHandler(authRateLimiter, next)
		})
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/password-reset/request", resetHandler.Request)
	})

	// Password reset completion and validation, no session needed
	r.Group(func(r chi.Router) {
		r.Post("/api/password-reset/reset", resetHandler.Reset)
		r.Get("/api/password-reset/validate/{token}", resetHandler.Validate)
		r.Get("/api/users/verify-email/{token}", userHandler.VerifyEmail)
	})

	// Public gallery
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Use(auth.OptionalAuth(deps.DB, deps.SessionManager, deps.Cfg))
		r.Get("/api/gallery/public", galleryHandler.Public)
		r.Get("/api/gallery/search", galleryHandler.Search)
		r.Get("/api/gallery/{id}", galleryHandler.Get)
	})

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(deps.DB, deps.SessionManager, deps.Cfg))
		r.Use(csrfMiddleware)

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)
		r.Put("/api/auth/change-password", authHandler.ChangePassword)

		r.Put("/api/users/profile", userHandler.UpdateProfile)
		r.Put("/api/users/email", userHandler.ChangeEmail)

		r.Get("/api/gallery", galleryHandler.List)
		r.Get("/api/gallery/statistics", galleryHandler.Statistics)
		r.Put("/api/gallery/{id}", galleryHandler.Update)
		r.Delete("/api/gallery/{id}", galleryHandler.Delete)

		r.Get("/api/notifications", notificationHandler.List)
		r.Get("/api/notifications/unread-count", notificationHandler.UnreadCount)
		r.Get("/api/notifications/toasts", notificationHandler.Toasts)
		r.Put("/api/notifications/{id}/read", notificationHandler.MarkRead)
		r.Put("/api/notifications/mark-all-read", notificationHandler.MarkAllRead)
		r.Delete("/api/notifications/{id}", notificationHandler.Delete)

		r.Get("/api/uploads", uploadHandler.Active)
		r.Get("/api/uploads/{id}", uploadHandler.Get)
		r.Post("/api/uploads/{id}/cancel", uploadHandler.Cancel)

		r.Get("/api/stats/me", statsHandler.Me)
		r.Get("/api/stats/dashboard", statsHandler.Dashboard)
	})

	// Multipart upload endpoint. CSRF middleware is skipped because the
	// gorilla shim parses the form and would consume the body; session auth
	// plus SameSite cookies cover it.
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(deps.DB, deps.SessionManager, deps.Cfg))
		r.Post("/api/gallery/upload", galleryHandler.Upload)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(deps.DB, deps.SessionManager, deps.Cfg))
		r.Use(auth.RequireAdmin())
		r.Use(csrfMiddleware)

		r.Get("/api/users", userHandler.ListUsers)
		r.Get("/api/users/{id}", userHandler.GetUser)
		r.Put("/api/users/{id}/role", userHandler.UpdateRole)

		r.Put("/api/gallery/{id}/validate", galleryHandler.Validate)
		r.Post("/api/gallery/cleanup", galleryHandler.Cleanup)

		r.Get("/api/stats/admin", statsHandler.Admin)
	})
}
