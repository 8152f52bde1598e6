package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/notifications"
	"github.com/artfolio/artfolio/internal/uploads"
)

type NotificationHandler struct {
	service *notifications.Service
	feed    *uploads.Feed
}

func NewNotificationHandler(service *notifications.Service, feed *uploads.Feed) *NotificationHandler {
	return &NotificationHandler{service: service, feed: feed}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	page, limit := parsePagination(r)

	items, err := h.service.List(user.ID, notifications.ListOptions{Page: page, Limit: limit})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	stats, err := h.service.Stats(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"notifications": items,
		"unreadCount":   stats.Unread,
		"pagination": map[string]any{
			"page":  page,
			"limit": limit,
			"total": stats.Total,
		},
	})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	count, err := h.service.UnreadCount(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"unreadCount": count,
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}

	if err := h.service.MarkAsRead(uint(id), user.ID); err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Notification not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	updated, err := h.service.MarkAllAsRead(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"updated": updated,
	})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}

	if err := h.service.Delete(uint(id), user.ID); err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Notification not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to delete notification")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Toasts returns the transient in-memory feed: active toasts plus the
// upload-driven center entries that have not been promoted to the database.
func (h *NotificationHandler) Toasts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"toasts":  h.feed.Toasts(),
		"center":  h.feed.Center(),
	})
}
