package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artfolio/artfolio/internal/uploads"
)

type UploadHandler struct {
	tracker *uploads.Tracker
}

func NewUploadHandler(tracker *uploads.Tracker) *UploadHandler {
	return &UploadHandler{tracker: tracker}
}

// Active lists upload sessions still in the active set, including terminal
// sessions inside their linger window.
func (h *UploadHandler) Active(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": h.tracker.Active(),
	})
}

func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, ok := h.tracker.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Upload session not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sess,
	})
}

// Cancel marks a session cancelled. The transfer itself is not aborted;
// cancelling only updates what the session reports.
func (h *UploadHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := h.tracker.Get(id); !ok {
		respondError(w, http.StatusNotFound, "Upload session not found")
		return
	}

	h.tracker.Cancel(id)
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
