package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/metrics"
	"github.com/artfolio/artfolio/internal/passwordreset"
)

type PasswordResetHandler struct {
	service *passwordreset.Service
	cfg     *config.Config
}

func NewPasswordResetHandler(service *passwordreset.Service, cfg *config.Config) *PasswordResetHandler {
	return &PasswordResetHandler{service: service, cfg: cfg}
}

type resetRequestBody struct {
	Email string `json:"email"`
}

type resetBody struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Request starts a password reset. The response is identical whether or not
// the email belongs to an account, so the endpoint cannot be used to probe
// for registered addresses.
func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	token, err := h.service.RequestReset(r.Context(), req.Email)

	response := map[string]any{
		"success": true,
		"message": "If an account exists with this email, you will receive reset instructions",
	}

	switch {
	case err == nil:
		metrics.RecordPasswordResetRequest("sent")
		// Development convenience so the flow can be exercised without a
		// running mail consumer. Never set in production.
		if h.cfg.IsDevelopment() {
			response["resetToken"] = token
		}
	case errors.Is(err, passwordreset.ErrAccountNotFound):
		metrics.RecordPasswordResetRequest("unknown_account")
	case errors.Is(err, passwordreset.ErrRateLimited):
		metrics.RecordPasswordResetRequest("rate_limited")
	default:
		logger.Error("password reset request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// Reset completes a password reset with a valid token.
func (h *PasswordResetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetBody
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "Token is required")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		respondError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Password has been reset successfully",
		})
	case errors.Is(err, passwordreset.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
	case errors.Is(err, passwordreset.ErrExpired):
		respondError(w, http.StatusBadRequest, "Reset token has expired")
	case errors.Is(err, passwordreset.ErrInvalidToken):
		respondError(w, http.StatusBadRequest, "Invalid or expired reset token")
	default:
		logger.Error("password reset failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to reset password")
	}
}

// Validate checks a reset token without consuming it, so the reset form can
// show an error before the user types a new password.
func (h *PasswordResetHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	email, err := h.service.ValidateToken(r.Context(), token)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{
			"valid": true,
			"email": email,
		})
	case errors.Is(err, passwordreset.ErrExpired):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"valid": false,
			"error": "Reset token has expired",
		})
	case errors.Is(err, passwordreset.ErrInvalidToken):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"valid": false,
			"error": "Invalid or expired reset token",
		})
	default:
		logger.Error("token validation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to validate token")
	}
}
