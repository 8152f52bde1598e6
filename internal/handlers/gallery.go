package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/maruel/natural"
	"gorm.io/gorm"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/database/models"
	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/metrics"
	"github.com/artfolio/artfolio/internal/storage"
	"github.com/artfolio/artfolio/internal/uploads"
)

// allowedImageTypes maps accepted file extensions to served MIME types.
var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

type GalleryHandler struct {
	db      *gorm.DB
	cfg     *config.Config
	backend storage.Backend
	tracker *uploads.Tracker
}

func NewGalleryHandler(db *gorm.DB, cfg *config.Config, backend storage.Backend, tracker *uploads.Tracker) *GalleryHandler {
	return &GalleryHandler{
		db:      db,
		cfg:     cfg,
		backend: backend,
		tracker: tracker,
	}
}

func itemPayload(item *models.GalleryItem) map[string]any {
	return map[string]any{
		"id":               item.ID,
		"userId":           item.UserID,
		"title":            item.Title,
		"description":      item.Description,
		"artist":           item.Artist,
		"year":             item.Year,
		"tags":             item.Tags,
		"imageUrl":         "/images/" + item.ImagePath,
		"originalFilename": item.OriginalFilename,
		"fileSize":         item.FileSize,
		"mimeType":         item.MimeType,
		"isValid":          item.IsValid,
		"createdAt":        item.CreatedAt,
		"updatedAt":        item.UpdatedAt,
	}
}

func itemsPayload(items []models.GalleryItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, itemPayload(&items[i]))
	}
	return out
}

func parsePagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// List returns the authenticated user's gallery items. Title sort uses
// natural ordering so "Plate 2" comes before "Plate 10".
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	page, limit := parsePagination(r)

	query := h.db.Where("user_id = ?", user.ID)
	switch r.URL.Query().Get("status") {
	case "valid":
		query = query.Where("is_valid = ?", true)
	case "invalid":
		query = query.Where("is_valid = ?", false)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"title LIKE ? OR description LIKE ? OR artist LIKE ? OR tags LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Model(&models.GalleryItem{}).Count(&total).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list gallery")
		return
	}

	var items []models.GalleryItem
	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list gallery")
		return
	}

	if r.URL.Query().Get("sort") == "title" {
		sort.Slice(items, func(i, j int) bool {
			return natural.Less(strings.ToLower(items[i].Title), strings.ToLower(items[j].Title))
		})
	}

	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   itemsPayload(items[start:end]),
		"pagination": map[string]any{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// Public lists validated items from all users, newest first.
func (h *GalleryHandler) Public(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	query := h.db.Where("is_valid = ?", true)

	var total int64
	if err := query.Model(&models.GalleryItem{}).Count(&total).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list gallery")
		return
	}

	var items []models.GalleryItem
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&items).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list gallery")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   itemsPayload(items),
		"pagination": map[string]any{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// Search searches validated items by title, artist or tags.
func (h *GalleryHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	page, limit := parsePagination(r)

	like := "%" + q + "%"
	query := h.db.Where("is_valid = ?", true).
		Where("title LIKE ? OR artist LIKE ? OR tags LIKE ?", like, like, like)

	var total int64
	if err := query.Model(&models.GalleryItem{}).Count(&total).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	var items []models.GalleryItem
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&items).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   itemsPayload(items),
		"pagination": map[string]any{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// Statistics returns per-user gallery aggregates.
func (h *GalleryHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	var total, valid int64
	if err := h.db.Model(&models.GalleryItem{}).Where("user_id = ?", user.ID).Count(&total).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}
	if err := h.db.Model(&models.GalleryItem{}).Where("user_id = ? AND is_valid = ?", user.ID, true).Count(&valid).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}

	var totalBytes int64
	row := h.db.Model(&models.GalleryItem{}).
		Where("user_id = ?", user.ID).
		Select("COALESCE(SUM(file_size), 0)").
		Row()
	if err := row.Scan(&totalBytes); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"statistics": map[string]any{
			"totalItems":   total,
			"validItems":   valid,
			"invalidItems": total - valid,
			"totalBytes":   totalBytes,
		},
	})
}

// Get returns a single item. Unvalidated items are visible only to their
// owner or an admin.
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var item models.GalleryItem
	if err := h.db.First(&item, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	user := auth.GetUser(r)
	if !item.IsValid {
		if user == nil || (user.ID != item.UserID && !user.IsAdmin()) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item":    itemPayload(&item),
	})
}

// Upload accepts one or more images as multipart form data. Progress is
// reported to the upload tracker so the session survives page reloads.
func (h *GalleryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize*8)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "No files provided")
		return
	}

	infos := make([]uploads.FileInfo, 0, len(files))
	for _, fh := range files {
		infos = append(infos, uploads.FileInfo{Name: fh.Filename, Size: fh.Size})
	}
	sessionID := h.tracker.Begin(infos, len(files))

	created := make([]models.GalleryItem, 0, len(files))
	for i, fh := range files {
		item, err := h.saveOne(r, user, fh)
		if err != nil {
			h.tracker.Fail(sessionID, err.Error())
			metrics.RecordImageUpload(false)
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"success":         false,
				"error":           err.Error(),
				"uploadSessionId": sessionID,
				"items":           itemsPayload(created),
			})
			return
		}
		created = append(created, *item)
		metrics.RecordImageUpload(true)
		metrics.UploadBytesTotal.Add(float64(item.FileSize))

		done := i + 1
		h.tracker.ReportProgress(sessionID, uploads.Progress{
			Progress:       intPtr(done * 100 / len(files)),
			CurrentFile:    intPtr(done),
			FilesCompleted: intPtr(done),
		})
	}
	h.tracker.Complete(sessionID)

	logger.Info("gallery upload", "user_id", user.ID, "files", len(created))
	respondJSON(w, http.StatusCreated, map[string]any{
		"success":         true,
		"items":           itemsPayload(created),
		"uploadSessionId": sessionID,
	})
}

func (h *GalleryHandler) saveOne(r *http.Request, user *models.User, fh *multipart.FileHeader) (*models.GalleryItem, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	mimeType, ok := allowedImageTypes[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if fh.Size > h.cfg.MaxUploadSize {
		return nil, fmt.Errorf("file %q exceeds the upload size limit", fh.Filename)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer file.Close()

	result, err := h.backend.Save(r.Context(), file, storage.SaveOptions{
		Filename:    uuid.New().String() + ext,
		ContentType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(fh.Filename, ext)
	}

	item := models.GalleryItem{
		UserID:           user.ID,
		Title:            title,
		Description:      r.FormValue("description"),
		Artist:           r.FormValue("artist"),
		Tags:             r.FormValue("tags"),
		ImagePath:        result.Path,
		OriginalFilename: fh.Filename,
		FileSize:         result.Size,
		MimeType:         mimeType,
		Hash:             result.Hash,
	}
	if year := r.FormValue("year"); year != "" {
		if y, err := strconv.Atoi(year); err == nil {
			item.Year = &y
		}
	}

	if err := h.db.Create(&item).Error; err != nil {
		h.backend.Delete(r.Context(), result.Path)
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	return &item, nil
}

type UpdateItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Artist      *string `json:"artist"`
	Year        *int    `json:"year"`
	Tags        *string `json:"tags"`
}

// Update edits item metadata. A multipart request may carry a
// replacement image in the "image" field; the previous file is removed
// once the new one is stored.
func (h *GalleryHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	item, ok := h.ownedItem(w, r, user)
	if !ok {
		return
	}

	var req UpdateItemRequest
	updates := map[string]any{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize*2)
		if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
			respondError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		for _, field := range []string{"title", "description", "artist", "tags"} {
			if vals, ok := r.MultipartForm.Value[field]; ok && len(vals) > 0 {
				updates[field] = vals[0]
			}
		}
		if year := r.FormValue("year"); year != "" {
			if y, err := strconv.Atoi(year); err == nil {
				updates["year"] = y
			}
		}
		if fhs := r.MultipartForm.File["image"]; len(fhs) > 0 {
			replacement, err := h.replaceImage(r, item, fhs[0])
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			for k, v := range replacement {
				updates[k] = v
			}
		}
	} else {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		if req.Title != nil {
			updates["title"] = *req.Title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Artist != nil {
			updates["artist"] = *req.Artist
		}
		if req.Year != nil {
			updates["year"] = *req.Year
		}
		if req.Tags != nil {
			updates["tags"] = *req.Tags
		}
	}

	if len(updates) > 0 {
		if err := h.db.Model(item).Updates(updates).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update item")
			return
		}
	}

	var updated models.GalleryItem
	if err := h.db.First(&updated, item.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load item")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item":    itemPayload(&updated),
	})
}

// replaceImage stores a new file for the item and removes the old one.
// Returns the column updates for the new object.
func (h *GalleryHandler) replaceImage(r *http.Request, item *models.GalleryItem, fh *multipart.FileHeader) (map[string]any, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	mimeType, ok := allowedImageTypes[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if fh.Size > h.cfg.MaxUploadSize {
		return nil, fmt.Errorf("file %q exceeds the upload size limit", fh.Filename)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer file.Close()

	result, err := h.backend.Save(r.Context(), file, storage.SaveOptions{
		Filename:    uuid.New().String() + ext,
		ContentType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	if err := h.backend.Delete(r.Context(), item.ImagePath); err != nil {
		logger.Warn("failed to delete replaced image", "path", item.ImagePath, "error", err)
	}

	return map[string]any{
		"image_path":        result.Path,
		"original_filename": fh.Filename,
		"file_size":         result.Size,
		"mime_type":         mimeType,
		"hash":              result.Hash,
	}, nil
}

// Validate toggles the moderation flag on an item. Admin only.
func (h *GalleryHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var item models.GalleryItem
	if err := h.db.First(&item, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	if err := h.db.Model(&item).Update("is_valid", !item.IsValid).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update item")
		return
	}
	item.IsValid = !item.IsValid

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item":    itemPayload(&item),
	})
}

func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	item, ok := h.ownedItem(w, r, user)
	if !ok {
		return
	}

	if err := h.db.Delete(item).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}
	if err := h.backend.Delete(r.Context(), item.ImagePath); err != nil {
		logger.Warn("failed to delete stored image", "path", item.ImagePath, "error", err)
	}
	metrics.ImagesDeleted.Inc()

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Item deleted",
	})
}

// Cleanup soft-deletes records whose stored file has gone missing. Admin
// only; intended for recovering from manual storage surgery.
func (h *GalleryHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var items []models.GalleryItem
	if err := h.db.Find(&items).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}

	removed := 0
	for i := range items {
		_, err := h.backend.Stat(r.Context(), items[i].ImagePath)
		if errors.Is(err, storage.ErrNotFound) {
			if err := h.db.Delete(&items[i]).Error; err != nil {
				logger.Warn("cleanup delete failed", "item_id", items[i].ID, "error", err)
				continue
			}
			removed++
		}
	}

	logger.Info("gallery cleanup", "removed", removed)
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"removed": removed,
	})
}

// ServeImage streams a stored image. Auth is handled at the routing layer.
func (h *GalleryHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" {
		respondError(w, http.StatusBadRequest, "Image path is required")
		return
	}

	var item models.GalleryItem
	if err := h.db.Where("image_path = ?", filepath.Base(path)).First(&item).Error; err != nil {
		respondError(w, http.StatusNotFound, "Image not found")
		return
	}

	reader, err := h.backend.Open(r.Context(), item.ImagePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Image not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load image")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", item.MimeType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		logger.Warn("image stream interrupted", "path", item.ImagePath, "error", err)
	}
}

func (h *GalleryHandler) ownedItem(w http.ResponseWriter, r *http.Request, user *models.User) (*models.GalleryItem, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return nil, false
	}

	var item models.GalleryItem
	if err := h.db.First(&item, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return nil, false
	}
	if item.UserID != user.ID && !user.IsAdmin() {
		respondError(w, http.StatusForbidden, "You do not own this item")
		return nil, false
	}
	return &item, true
}

func intPtr(v int) *int { return &v }
