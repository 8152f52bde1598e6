// Package passwordreset implements the reset-token lifecycle: issue a
// single-use, time-boxed, rate-limited credential that authorizes
// exactly one password change. Plaintext tokens are never stored; only
// their sha256 hash is persisted on the user row.
package passwordreset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/mailer"
	"github.com/artfolio/artfolio/internal/notifications"
	"gorm.io/gorm"
)

const (
	// TokenTTL is how long an issued token stays valid.
	TokenTTL = time.Hour
	// MaxAttempts is the issuance cap inside AttemptWindow.
	MaxAttempts = 5
	// AttemptWindow is the rolling throttle window, measured from the
	// last issuance attempt rather than a calendar boundary.
	AttemptWindow = 24 * time.Hour
	// MinPasswordLength is the weakest password accepted on reset.
	MinPasswordLength = 6
)

// Typed outcomes. ErrAccountNotFound and ErrRateLimited must never
// reach the HTTP response for a reset request; the handler collapses
// them into the uniform success message.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrRateLimited     = errors.New("too many reset attempts")
	ErrInvalidToken    = errors.New("invalid or expired reset token")
	ErrExpired         = errors.New("reset token has expired")
	ErrWeakPassword    = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
)

type Service struct {
	db            *gorm.DB
	mailer        mailer.Mailer
	notifications *notifications.Service
	baseURL       string
	bcryptCost    int
}

func NewService(db *gorm.DB, m mailer.Mailer, n *notifications.Service, baseURL string, bcryptCost int) *Service {
	return &Service{
		db:            db,
		mailer:        m,
		notifications: n,
		baseURL:       baseURL,
		bcryptCost:    bcryptCost,
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// RequestReset issues a reset token for the account registered under
// email and delivers the plaintext out-of-band. The returned token is
// exposed to the HTTP layer only in non-production configurations.
//
// ErrAccountNotFound and ErrRateLimited are internal outcomes: callers
// present the same success response either way.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("failed to look up account: %w", err)
	}

	now := time.Now()

	if user.ResetPasswordAttempts >= MaxAttempts {
		if user.LastResetPasswordAttempt != nil && now.Sub(*user.LastResetPasswordAttempt) < AttemptWindow {
			logger.Warn("password reset rate limited",
				"user_id", user.ID,
				"attempts", user.ResetPasswordAttempts,
				"last_attempt", user.LastResetPasswordAttempt,
			)
			return "", ErrRateLimited
		}
		// Window elapsed, counter starts over.
		user.ResetPasswordAttempts = 0
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	tokenHash := hashToken(token)
	expires := now.Add(TokenTTL)
	attempts := user.ResetPasswordAttempts + 1

	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"reset_password_token":        tokenHash,
		"reset_password_expires":      expires,
		"reset_password_attempts":     attempts,
		"last_reset_password_attempt": now,
	}).Error
	if err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	resetLink := s.baseURL + "/reset-password?token=" + token
	if err := s.mailer.Send(ctx, mailer.Message{
		Type:          "password_reset",
		Recipient:     user.Email,
		RecipientName: user.Username,
		Subject:       "Reset your password",
		Body:          "Use the link below to reset your password. It expires in 1 hour.",
		ActionURL:     resetLink,
	}); err != nil {
		logger.Error("failed to deliver reset link", "user_id", user.ID, "error", err)
	}

	if err := s.notifications.CreatePasswordResetRequested(user.ID); err != nil {
		logger.Error("failed to create reset-request notification", "user_id", user.ID, "error", err)
	}

	return token, nil
}

// ValidateToken checks a presented token without mutating any state.
// Returns the account email on success.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, error) {
	user, err := s.lookupToken(ctx, token)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// ResetPassword consumes a valid token and installs the new password.
// The weak-password check runs before any token lookup.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	user, err := s.lookupToken(ctx, token)
	if err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()

	// The WHERE clause on the stored hash makes consumption single-use:
	// two racing resets cannot both match, the loser observes zero rows.
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_password_token = ?", user.ID, hashToken(token)).
		Updates(map[string]any{
			"password_hash":               passwordHash,
			"reset_password_token":        nil,
			"reset_password_expires":      nil,
			"reset_password_attempts":     0,
			"last_reset_password_attempt": nil,
			"last_password_change":        now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reset password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidToken
	}

	if err := s.notifications.CreatePasswordResetCompleted(user.ID); err != nil {
		logger.Error("failed to create reset-success notification", "user_id", user.ID, "error", err)
	}

	return nil
}

// lookupToken finds the user holding the token's hash and enforces
// expiry. Expiry is strict: the token is invalid the instant the
// expiry timestamp is reached.
func (s *Service) lookupToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("reset_password_token = ?", hashToken(token)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	if user.ResetPasswordExpires == nil || !time.Now().Before(*user.ResetPasswordExpires) {
		return nil, ErrExpired
	}

	return &user, nil
}
