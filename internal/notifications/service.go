// Package notifications manages the durable notification center: one
// row per user-facing message, retained until dismissed.
package notifications

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/metrics"
)

// ErrNotFound covers both a missing notification and one owned by a
// different user; callers cannot distinguish the two.
var ErrNotFound = errors.New("notification not found or access denied")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ListOptions controls pagination for List.
type ListOptions struct {
	Page  int
	Limit int
}

func (o *ListOptions) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 || o.Limit > 100 {
		o.Limit = 20
	}
}

// List returns the user's notifications, newest first.
func (s *Service) List(userID uint, opts ListOptions) ([]models.Notification, error) {
	opts.normalize()

	var notifications []models.Notification
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// Recent returns the user's newest notifications, capped at limit.
func (s *Service) Recent(userID uint, limit int) ([]models.Notification, error) {
	if limit < 1 {
		limit = 10
	}
	var notifications []models.Notification
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *Service) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead marks one notification read. Ownership is enforced.
func (s *Service) MarkAsRead(notificationID, userID uint) error {
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user read and
// returns how many changed.
func (s *Service) MarkAllAsRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes one notification. Ownership is enforced.
func (s *Service) Delete(notificationID, userID uint) error {
	result := s.db.Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TypeStats holds per-type counts for a user's notifications.
type TypeStats struct {
	Total  int64            `json:"total"`
	Unread int64            `json:"unread"`
	ByType map[string]int64 `json:"types"`
}

// Stats aggregates notification counts for a user.
func (s *Service) Stats(userID uint) (TypeStats, error) {
	stats := TypeStats{ByType: make(map[string]int64)}

	if err := s.db.Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("failed to count notifications: %w", err)
	}

	unread, err := s.UnreadCount(userID)
	if err != nil {
		return stats, err
	}
	stats.Unread = unread

	type typeCount struct {
		Type  string
		Count int64
	}
	var counts []typeCount
	if err := s.db.Model(&models.Notification{}).
		Select("type, COUNT(*) as count").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&counts).Error; err != nil {
		return stats, fmt.Errorf("failed to aggregate notification types: %w", err)
	}
	for _, tc := range counts {
		stats.ByType[tc.Type] = tc.Count
	}

	return stats, nil
}

// CleanupOld deletes read notifications older than the retention period
// and returns how many were removed.
func (s *Service) CleanupOld(retentionDays int) (int64, error) {
	if retentionDays < 1 {
		retentionDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Create stores a notification for the user.
func (s *Service) Create(userID uint, title, message, notifType string, metadata map[string]string) (*models.Notification, error) {
	if notifType == "" {
		notifType = models.NotificationInfo
	}
	n := models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notifType,
	}
	if metadata != nil {
		n.Metadata = datatypes.NewJSONType(metadata)
	}
	if err := s.db.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	metrics.RecordNotification(notifType)
	return &n, nil
}

// Templated creators. These mirror the application events that produce
// center notifications; failures are the caller's to log, none are fatal
// to the triggering operation.

func (s *Service) CreateWelcome(userID uint) error {
	_, err := s.Create(userID, "Welcome!",
		"Welcome to Artfolio! We are glad to have you here.",
		models.NotificationSuccess, nil)
	return err
}

func (s *Service) CreatePasswordChanged(userID uint) error {
	_, err := s.Create(userID, "Password changed",
		"Your password has been changed successfully.",
		models.NotificationInfo, nil)
	return err
}

func (s *Service) CreateProfileUpdated(userID uint) error {
	_, err := s.Create(userID, "Profile updated",
		"Your profile has been updated successfully.",
		models.NotificationInfo, nil)
	return err
}

func (s *Service) CreatePasswordResetRequested(userID uint) error {
	_, err := s.Create(userID, "Password reset requested",
		"A password reset was requested for your account.",
		models.NotificationWarning, nil)
	return err
}

func (s *Service) CreatePasswordResetCompleted(userID uint) error {
	_, err := s.Create(userID, "Password reset",
		"Your password has been reset successfully.",
		models.NotificationSuccess, nil)
	return err
}

func (s *Service) CreateEmailChanged(userID uint, newEmail string) error {
	_, err := s.Create(userID, "Email address changed",
		newEmail+". Please verify your new email address.",
		models.NotificationWarning, map[string]string{"new_email": newEmail})
	return err
}

func (s *Service) CreateEmailVerified(userID uint) error {
	_, err := s.Create(userID, "Email address verified",
		"Your email address has been verified successfully.",
		models.NotificationSuccess, nil)
	return err
}
