package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/notifications"
)

type StatsHandler struct {
	db            *gorm.DB
	notifications *notifications.Service
}

func NewStatsHandler(db *gorm.DB, notifs *notifications.Service) *StatsHandler {
	return &StatsHandler{db: db, notifications: notifs}
}

// Me returns account-level aggregates for the authenticated user.
func (h *StatsHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	notifStats, err := h.notifications.Stats(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	var galleryTotal int64
	if err := h.db.Model(&models.GalleryItem{}).Where("user_id = ?", user.ID).Count(&galleryTotal).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats": map[string]any{
			"memberSince":        user.CreatedAt,
			"lastLogin":          user.LastLogin,
			"lastPasswordChange": user.LastPasswordChange,
			"emailVerified":      user.EmailVerified,
			"galleryItems":       galleryTotal,
			"notifications":      notifStats,
		},
	})
}

// Admin returns site-wide aggregates. Admin only.
func (h *StatsHandler) Admin(w http.ResponseWriter, r *http.Request) {
	type counts struct {
		Users         int64 `json:"users"`
		ActiveUsers   int64 `json:"activeUsers"`
		VerifiedUsers int64 `json:"verifiedUsers"`
		Admins        int64 `json:"admins"`
		GalleryItems  int64 `json:"galleryItems"`
		ValidItems    int64 `json:"validItems"`
		Notifications int64 `json:"notifications"`
	}

	var c counts
	queries := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&c.Users, h.db.Model(&models.User{})},
		{&c.ActiveUsers, h.db.Model(&models.User{}).Where("is_active = ?", true)},
		{&c.VerifiedUsers, h.db.Model(&models.User{}).Where("email_verified = ?", true)},
		{&c.Admins, h.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin)},
		{&c.GalleryItems, h.db.Model(&models.GalleryItem{})},
		{&c.ValidItems, h.db.Model(&models.GalleryItem{}).Where("is_valid = ?", true)},
		{&c.Notifications, h.db.Model(&models.Notification{})},
	}
	for _, q := range queries {
		if err := q.query.Count(q.dst).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to load stats")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   c,
	})
}

// Dashboard combines the user's own aggregates with recent notifications,
// sized for a landing page.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	recent, err := h.notifications.Recent(user.ID, 5)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	unread, err := h.notifications.UnreadCount(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	var galleryTotal, validTotal int64
	if err := h.db.Model(&models.GalleryItem{}).Where("user_id = ?", user.ID).Count(&galleryTotal).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	if err := h.db.Model(&models.GalleryItem{}).Where("user_id = ? AND is_valid = ?", user.ID, true).Count(&validTotal).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"dashboard": map[string]any{
			"galleryItems":        galleryTotal,
			"validItems":          validTotal,
			"unreadNotifications": unread,
			"recentNotifications": recent,
		},
	})
}
