package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/mailer"
	"github.com/artfolio/artfolio/internal/notifications"
	"github.com/artfolio/artfolio/internal/passwordreset"
	"github.com/artfolio/artfolio/internal/storage"
	"github.com/artfolio/artfolio/internal/uploads"
)

// testApp bundles the dependencies handler tests need.
type testApp struct {
	db             *gorm.DB
	cfg            *config.Config
	sessionManager *scs.SessionManager
	notifications  *notifications.Service
	reset          *passwordreset.Service
	tracker        *uploads.Tracker
	feed           *uploads.Feed
	backend        storage.Backend
	router         *chi.Mux
	sentMail       *int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: ":memory:"}, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.GalleryItem{}, &models.Notification{}); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	cfg := &config.Config{
		Env:                "test",
		EnableRegistration: true,
		BcryptCost:         4, // low cost keeps tests fast
		SessionSecret:      "test-secret-key-32-bytes-long!!!",
		JWTSecret:          "test-jwt-secret",
		JWTExpiry:          time.Hour,
		MaxUploadSize:      10 * 1024 * 1024,
		PublicBaseURL:      "http://localhost:8080",
	}

	notifService := notifications.NewService(db)

	sent := 0
	mail := mailerFunc(func(msg mailer.Message) { sent++ })
	resetService := passwordreset.NewService(db, mail, notifService, cfg.PublicBaseURL, cfg.BcryptCost)

	feed := uploads.NewFeed()
	tracker := uploads.NewTracker(uploads.NewMemoryStore(), feed, uploads.Options{RemoveDelay: time.Hour})
	backend := storage.NewMemoryBackend()

	sessionManager := scs.New()

	app := &testApp{
		db:             db,
		cfg:            cfg,
		sessionManager: sessionManager,
		notifications:  notifService,
		reset:          resetService,
		tracker:        tracker,
		feed:           feed,
		backend:        backend,
		sentMail:       &sent,
	}

	authHandler := NewAuthHandler(db, cfg, sessionManager, notifService)
	resetHandler := NewPasswordResetHandler(resetService, cfg)
	userHandler := NewUserHandler(db, cfg, notifService)
	galleryHandler := NewGalleryHandler(db, cfg, backend, tracker)
	notificationHandler := NewNotificationHandler(notifService, feed)
	uploadHandler := NewUploadHandler(tracker)

	router := chi.NewRouter()
	router.Use(sessionManager.LoadAndSave)

	router.Post("/api/auth/register", authHandler.Register)
	router.Post("/api/auth/login", authHandler.Login)
	router.Post("/api/password-reset/request", resetHandler.Request)
	router.Post("/api/password-reset/reset", resetHandler.Reset)
	router.Get("/api/password-reset/validate/{token}", resetHandler.Validate)
	router.Get("/api/users/verify-email/{token}", userHandler.VerifyEmail)
	router.Get("/api/gallery/public", galleryHandler.Public)

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(db, sessionManager, cfg))
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)
		r.Put("/api/auth/change-password", authHandler.ChangePassword)
		r.Put("/api/users/profile", userHandler.UpdateProfile)
		r.Put("/api/users/email", userHandler.ChangeEmail)
		r.Get("/api/gallery", galleryHandler.List)
		r.Post("/api/gallery/upload", galleryHandler.Upload)
		r.Delete("/api/gallery/{id}", galleryHandler.Delete)
		r.Get("/api/notifications", notificationHandler.List)
		r.Get("/api/notifications/unread-count", notificationHandler.UnreadCount)
		r.Put("/api/notifications/{id}/read", notificationHandler.MarkRead)
		r.Get("/api/notifications/toasts", notificationHandler.Toasts)
		r.Get("/api/uploads", uploadHandler.Active)
		r.Get("/api/uploads/{id}", uploadHandler.Get)
		r.Post("/api/uploads/{id}/cancel", uploadHandler.Cancel)
	})

	app.router = router
	return app
}

// mailerFunc adapts a closure to the mailer interface.
type mailerFunc func(msg mailer.Message)

func (f mailerFunc) Send(ctx context.Context, msg mailer.Message) error {
	f(msg)
	return nil
}

// registerUser creates an account through the API and returns its JWT.
func (app *testApp) registerUser(t *testing.T, email, password string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"username": email,
		"email":    email,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Registration failed with %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode registration response: %v", err)
	}
	return resp.Token
}

// doJSON performs a JSON request with an optional bearer token.
func (app *testApp) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

// multipartUpload builds a multipart request with the given image files.
func (app *testApp) multipartUpload(t *testing.T, token string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/gallery/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return body
}
