package handlers

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/metrics"
	"github.com/artfolio/artfolio/internal/notifications"
)

type AuthHandler struct {
	db             *gorm.DB
	cfg            *config.Config
	sessionManager *scs.SessionManager
	notifications  *notifications.Service
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, sessionManager *scs.SessionManager, notifs *notifications.Service) *AuthHandler {
	return &AuthHandler{
		db:             db,
		cfg:            cfg,
		sessionManager: sessionManager,
		notifications:  notifs,
	}
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// userPayload is the user shape returned to clients. The password hash and
// reset bookkeeping never leave the server.
func userPayload(user *models.User) map[string]any {
	return map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"firstName":     user.FirstName,
		"lastName":      user.LastName,
		"bio":           user.Bio,
		"avatarUrl":     user.AvatarURL,
		"role":          user.Role,
		"emailVerified": user.EmailVerified,
		"createdAt":     user.CreatedAt,
		"lastLogin":     user.LastLogin,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.EnableRegistration {
		respondError(w, http.StatusForbidden, "Registration is disabled")
		return
	}

	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username, email and password are required")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	var existing models.User
	if err := h.db.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error; err == nil {
		metrics.RecordRegistration(false)
		respondError(w, http.StatusConflict, "Username or email already exists")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleUser,
		IsActive:     true,
	}

	if err := h.db.Create(&user).Error; err != nil {
		metrics.RecordRegistration(false)
		respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	if err := h.notifications.CreateWelcome(user.ID); err != nil {
		logger.Warn("failed to create welcome notification", "user_id", user.ID, "error", err)
	}

	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	h.sessionManager.Put(r.Context(), "user_id", int(user.ID))

	token, err := auth.IssueJWT(&user, h.cfg.JWTSecret, h.cfg.JWTExpiry)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	metrics.RecordRegistration(true)
	logger.Info("user registered", "user_id", user.ID, "username", user.Username)

	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    userPayload(&user),
		"token":   token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	// Missing users, wrong passwords and deactivated accounts all produce
	// the same response so the endpoint leaks nothing about which emails
	// exist.
	var user models.User
	err := h.db.Where("email = ?", req.Email).First(&user).Error
	if err != nil || !user.IsActive || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		metrics.RecordLogin(false)
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	if err := h.db.Model(&user).Update("last_login", now).Error; err != nil {
		logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now

	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	h.sessionManager.Put(r.Context(), "user_id", int(user.ID))

	token, err := auth.IssueJWT(&user, h.cfg.JWTSecret, h.cfg.JWTExpiry)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	metrics.RecordLogin(true)
	logger.Info("user logged in", "user_id", user.ID)

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userPayload(&user),
		"token":   token,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to logout")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out",
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userPayload(user),
	})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if !auth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
		respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if len(req.NewPassword) < 6 {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, h.cfg.BcryptCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	now := time.Now()
	updates := map[string]any{
		"password_hash":        hash,
		"last_password_change": now,
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	if err := h.notifications.CreatePasswordChanged(user.ID); err != nil {
		logger.Warn("failed to create notification", "user_id", user.ID, "error", err)
	}

	logger.Info("password changed", "user_id", user.ID)
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed successfully",
	})
}
