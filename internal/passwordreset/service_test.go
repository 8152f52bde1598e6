package passwordreset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/mailer"
	"github.com/artfolio/artfolio/internal/notifications"
)

// recordingMailer captures sent messages for assertions.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *recordingMailer) {
	t.Helper()

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: ":memory:"}, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Notification{}); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	mail := &recordingMailer{}
	svc := NewService(db, mail, notifications.NewService(db), "http://localhost:8080", 4)
	return svc, db, mail
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("original-password", 4)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{
		Username:     email,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func TestRequestReset(t *testing.T) {
	svc, db, mail := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	token, err := svc.RequestReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("Expected 64-char hex token, got %d chars", len(token))
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("Failed to reload user: %v", err)
	}
	if stored.ResetPasswordToken == nil {
		t.Fatal("Expected token hash to be stored")
	}
	if *stored.ResetPasswordToken == token {
		t.Error("Raw token must not be stored, only its hash")
	}
	if stored.ResetPasswordExpires == nil {
		t.Fatal("Expected expiry to be set")
	}
	remaining := time.Until(*stored.ResetPasswordExpires)
	if remaining < 59*time.Minute || remaining > 61*time.Minute {
		t.Errorf("Expected expiry about an hour out, got %v", remaining)
	}
	if stored.ResetPasswordAttempts != 1 {
		t.Errorf("Expected attempt count 1, got %d", stored.ResetPasswordAttempts)
	}
	if mail.count() != 1 {
		t.Errorf("Expected 1 reset email, got %d", mail.count())
	}
}

func TestRequestResetUnknownEmail(t *testing.T) {
	svc, _, mail := newTestService(t)

	_, err := svc.RequestReset(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("Expected ErrAccountNotFound, got %v", err)
	}
	if mail.count() != 0 {
		t.Errorf("No email should be sent for unknown accounts, got %d", mail.count())
	}
}

func TestRequestResetRateLimit(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	for i := 0; i < 5; i++ {
		if _, err := svc.RequestReset(context.Background(), user.Email); err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
	}

	// 6th request inside the window is blocked
	_, err := svc.RequestReset(context.Background(), user.Email)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited on 6th request, got %v", err)
	}
}

func TestRequestResetWindowElapsed(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	// Five historical attempts, but the last one is older than the window
	old := time.Now().Add(-25 * time.Hour)
	err := db.Model(user).Updates(map[string]any{
		"reset_password_attempts":     5,
		"last_reset_password_attempt": old,
	}).Error
	if err != nil {
		t.Fatalf("Failed to seed attempts: %v", err)
	}

	if _, err := svc.RequestReset(context.Background(), user.Email); err != nil {
		t.Fatalf("Expected request to succeed after window elapsed, got %v", err)
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("Failed to reload user: %v", err)
	}
	if stored.ResetPasswordAttempts != 1 {
		t.Errorf("Expected counter reset to 1, got %d", stored.ResetPasswordAttempts)
	}
}

func TestValidateToken(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	token, err := svc.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	email, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if email != user.Email {
		t.Errorf("Expected email %q, got %q", user.Email, email)
	}

	// Validation does not consume the token
	if _, err := svc.ValidateToken(context.Background(), token); err != nil {
		t.Errorf("Second validation should succeed, got %v", err)
	}

	if _, err := svc.ValidateToken(context.Background(), "deadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for bogus token, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	token, err := svc.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	// Exactly at the boundary counts as expired
	if err := db.Model(user).Update("reset_password_expires", time.Now()).Error; err != nil {
		t.Fatalf("Failed to age token: %v", err)
	}

	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired, got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	token, err := svc.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), token, "new-password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("Failed to reload user: %v", err)
	}
	if !auth.VerifyPassword(stored.PasswordHash, "new-password") {
		t.Error("New password does not verify")
	}
	if auth.VerifyPassword(stored.PasswordHash, "original-password") {
		t.Error("Old password still verifies")
	}
	if stored.ResetPasswordToken != nil || stored.ResetPasswordExpires != nil {
		t.Error("Reset fields should be cleared after use")
	}
	if stored.ResetPasswordAttempts != 0 {
		t.Errorf("Attempt counter should be cleared, got %d", stored.ResetPasswordAttempts)
	}
	if stored.LastPasswordChange == nil {
		t.Error("Expected last password change to be recorded")
	}
}

func TestResetPasswordSingleUse(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	token, err := svc.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), token, "first-new-password"); err != nil {
		t.Fatalf("First reset failed: %v", err)
	}

	err = svc.ResetPassword(context.Background(), token, "second-new-password")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Expected ErrInvalidToken on token reuse, got %v", err)
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("Failed to reload user: %v", err)
	}
	if !auth.VerifyPassword(stored.PasswordHash, "first-new-password") {
		t.Error("Password from the first reset should still be in effect")
	}
}

func TestResetPasswordWeakPasswordBeforeLookup(t *testing.T) {
	svc, _, _ := newTestService(t)

	// Even with a token that does not exist, a short password reports
	// weakness first.
	err := svc.ResetPassword(context.Background(), "not-a-real-token", "short")
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("Expected ErrWeakPassword before token lookup, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	token, err := svc.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	if err := db.Model(user).Update("reset_password_expires", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("Failed to age token: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), token, "new-password"); !errors.Is(err, ErrExpired) {
		t.Fatalf("Expected ErrExpired, got %v", err)
	}
}

func TestNewTokenInvalidatesPrevious(t *testing.T) {
	svc, db, _ := newTestService(t)
	user := createUser(t, db, "alice@example.com")

	first, err := svc.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	second, err := svc.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}

	if _, err := svc.ValidateToken(context.Background(), first); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("First token should be invalid after reissue, got %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), second); err != nil {
		t.Errorf("Second token should be valid, got %v", err)
	}
}
