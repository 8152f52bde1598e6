package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/notifications"
)

// emailVerificationTTL bounds how long a change-of-email link stays usable.
const emailVerificationTTL = 24 * time.Hour

type UserHandler struct {
	db            *gorm.DB
	cfg           *config.Config
	notifications *notifications.Service
}

func NewUserHandler(db *gorm.DB, cfg *config.Config, notifs *notifications.Service) *UserHandler {
	return &UserHandler{db: db, cfg: cfg, notifications: notifs}
}

type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
}

type ChangeEmailRequest struct {
	NewEmail        string `json:"newEmail"`
	CurrentPassword string `json:"currentPassword"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	updates := map[string]any{}
	if req.Username != nil && *req.Username != user.Username {
		if *req.Username == "" {
			respondError(w, http.StatusBadRequest, "Username cannot be empty")
			return
		}
		var existing models.User
		if err := h.db.Where("username = ? AND id != ?", *req.Username, user.ID).First(&existing).Error; err == nil {
			respondError(w, http.StatusConflict, "Username already taken")
			return
		}
		updates["username"] = *req.Username
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}

	if len(updates) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    userPayload(user),
		})
		return
	}

	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	if err := h.notifications.CreateProfileUpdated(user.ID); err != nil {
		logger.Warn("failed to create notification", "user_id", user.ID, "error", err)
	}

	var updated models.User
	if err := h.db.First(&updated, user.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userPayload(&updated),
	})
}

func (h *UserHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangeEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.NewEmail == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
		respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	var existing models.User
	if err := h.db.Where("email = ? AND id != ?", req.NewEmail, user.ID).First(&existing).Error; err == nil {
		respondError(w, http.StatusConflict, "Email already in use")
		return
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to change email")
		return
	}
	token := hex.EncodeToString(raw)
	expires := time.Now().Add(emailVerificationTTL)

	updates := map[string]any{
		"email":                      req.NewEmail,
		"email_verified":             false,
		"email_verification_token":   token,
		"email_verification_expires": expires,
		"last_email_change":          time.Now(),
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to change email")
		return
	}

	if err := h.notifications.CreateEmailChanged(user.ID, req.NewEmail); err != nil {
		logger.Warn("failed to create notification", "user_id", user.ID, "error", err)
	}

	logger.Info("email change requested", "user_id", user.ID)

	response := map[string]any{
		"success": true,
		"message": "Email updated. Please verify your new address.",
	}
	if h.cfg.IsDevelopment() {
		response["verificationToken"] = token
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "Token is required")
		return
	}

	var user models.User
	err := h.db.Where("email_verification_token = ?", token).First(&user).Error
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid verification token")
		return
	}
	if user.EmailVerificationExpires == nil || !time.Now().Before(*user.EmailVerificationExpires) {
		respondError(w, http.StatusBadRequest, "Verification token has expired")
		return
	}

	updates := map[string]any{
		"email_verified":             true,
		"email_verification_token":   nil,
		"email_verification_expires": nil,
	}
	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}

	if err := h.notifications.CreateEmailVerified(user.ID); err != nil {
		logger.Warn("failed to create notification", "user_id", user.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified successfully",
	})
}

// Admin endpoints

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := h.db.Model(&models.User{}).Count(&total).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	var users []models.User
	err := h.db.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&users).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	payload := make([]map[string]any, 0, len(users))
	for i := range users {
		payload = append(payload, userPayload(&users[i]))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   payload,
		"pagination": map[string]any{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userPayload(&user),
	})
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	admin := auth.GetUser(r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req UpdateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	switch req.Role {
	case models.RoleUser, models.RoleAdmin, models.RoleModerator:
	default:
		respondError(w, http.StatusBadRequest, "Invalid role")
		return
	}

	if admin != nil && admin.ID == uint(id) {
		respondError(w, http.StatusBadRequest, "Cannot change your own role")
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	if err := h.db.Model(&user).Update("role", req.Role).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	logger.Info("user role updated", "user_id", user.ID, "role", req.Role)
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userPayload(&user),
	})
}
