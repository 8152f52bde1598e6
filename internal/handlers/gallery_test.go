package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/artfolio/artfolio/internal/database/models"
)

// tiny but structurally irrelevant payload; the handler validates by
// extension, not content sniffing
var fakeJPEG = []byte("\xff\xd8\xff\xe0fake jpeg data")

func TestGalleryUpload(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "alice@example.com", "password123")

	rec := app.multipartUpload(t, token, map[string][]byte{
		"sunset.jpg": fakeJPEG,
		"dunes.png":  []byte("fake png data"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Upload failed with %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	sessionID, ok := body["uploadSessionId"].(string)
	if !ok || !strings.HasPrefix(sessionID, "upload_") {
		t.Fatalf("Expected an upload session id, got %v", body["uploadSessionId"])
	}

	// The session is completed and readable through the uploads API
	rec = app.doJSON(t, http.MethodGet, "/api/uploads/"+sessionID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Session lookup failed: %s", rec.Body.String())
	}
	sess := decodeBody(t, rec)["session"].(map[string]any)
	if sess["status"] != "completed" {
		t.Errorf("Expected completed session, got %v", sess["status"])
	}
	if sess["progress"].(float64) != 100 {
		t.Errorf("Expected progress 100, got %v", sess["progress"])
	}

	// The feed carries start and completion toasts
	rec = app.doJSON(t, http.MethodGet, "/api/notifications/toasts", token, nil)
	toasts := decodeBody(t, rec)["toasts"].([]any)
	if len(toasts) < 2 {
		t.Errorf("Expected start and completion toasts, got %d", len(toasts))
	}
}

func TestGalleryUploadRejectsUnsupportedType(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "alice@example.com", "password123")

	rec := app.multipartUpload(t, token, map[string][]byte{
		"malware.exe": []byte("MZ..."),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unsupported type, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if !strings.Contains(body["error"].(string), "unsupported file type") {
		t.Errorf("Unexpected error: %v", body["error"])
	}

	// The session ends in error state
	sessionID := body["uploadSessionId"].(string)
	rec = app.doJSON(t, http.MethodGet, "/api/uploads/"+sessionID, token, nil)
	sess := decodeBody(t, rec)["session"].(map[string]any)
	if sess["status"] != "error" {
		t.Errorf("Expected error session, got %v", sess["status"])
	}
}

func TestGalleryListAndOwnership(t *testing.T) {
	app := newTestApp(t)
	alice := app.registerUser(t, "alice@example.com", "password123")
	bob := app.registerUser(t, "bob@example.com", "password123")

	rec := app.multipartUpload(t, alice, map[string][]byte{"a.jpg": fakeJPEG})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Upload failed: %s", rec.Body.String())
	}

	// Alice sees her item
	rec = app.doJSON(t, http.MethodGet, "/api/gallery", alice, nil)
	items := decodeBody(t, rec)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("Alice should see 1 item, got %d", len(items))
	}

	// Bob sees none
	rec = app.doJSON(t, http.MethodGet, "/api/gallery", bob, nil)
	items = decodeBody(t, rec)["items"].([]any)
	if len(items) != 0 {
		t.Errorf("Bob should see 0 items, got %d", len(items))
	}

	// Bob cannot delete Alice's item
	itemID := int(decodeBody(t, app.doJSON(t, http.MethodGet, "/api/gallery", alice, nil))["items"].([]any)[0].(map[string]any)["id"].(float64))
	rec = app.doJSON(t, http.MethodDelete, "/api/gallery/"+itoa(itemID), bob, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for foreign delete, got %d", rec.Code)
	}

	// Alice can
	rec = app.doJSON(t, http.MethodDelete, "/api/gallery/"+itoa(itemID), alice, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Owner delete failed: %s", rec.Body.String())
	}
}

func TestGalleryPublicShowsOnlyValidated(t *testing.T) {
	app := newTestApp(t)
	alice := app.registerUser(t, "alice@example.com", "password123")

	rec := app.multipartUpload(t, alice, map[string][]byte{"a.jpg": fakeJPEG, "b.jpg": fakeJPEG})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Upload failed: %s", rec.Body.String())
	}

	// Nothing is validated yet
	rec = app.doJSON(t, http.MethodGet, "/api/gallery/public", "", nil)
	items := decodeBody(t, rec)["items"].([]any)
	if len(items) != 0 {
		t.Fatalf("Unvalidated items must not be public, got %d", len(items))
	}

	// Validate one directly
	if err := app.db.Model(&models.GalleryItem{}).Where("original_filename = ?", "a.jpg").
		Update("is_valid", true).Error; err != nil {
		t.Fatalf("Failed to validate item: %v", err)
	}

	rec = app.doJSON(t, http.MethodGet, "/api/gallery/public", "", nil)
	items = decodeBody(t, rec)["items"].([]any)
	if len(items) != 1 {
		t.Errorf("Expected 1 public item, got %d", len(items))
	}
}

func TestUploadCancelPresentationOnly(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "alice@example.com", "password123")

	// Start a session directly; no transport is attached
	sessionID := app.tracker.Begin(nil, 3)

	rec := app.doJSON(t, http.MethodPost, "/api/uploads/"+sessionID+"/cancel", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Cancel failed: %s", rec.Body.String())
	}

	sess, ok := app.tracker.Get(sessionID)
	if !ok || sess.Status != "cancelled" {
		t.Errorf("Expected cancelled session, got %+v", sess)
	}

	// Cancelling an unknown session is a 404
	rec = app.doJSON(t, http.MethodPost, "/api/uploads/upload_missing/cancel", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", rec.Code)
	}
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
