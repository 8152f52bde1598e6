package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/artfolio/artfolio/internal/database/models"
)

func TestUpdateProfile(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "alice@example.com", "password123")

	rec := app.doJSON(t, http.MethodPut, "/api/users/profile", token, map[string]any{
		"firstName": "Alice",
		"bio":       "Painter of small things",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("UpdateProfile failed: %s", rec.Body.String())
	}
	user := decodeBody(t, rec)["user"].(map[string]any)
	if user["firstName"] != "Alice" {
		t.Errorf("Expected firstName Alice, got %v", user["firstName"])
	}
	if user["bio"] != "Painter of small things" {
		t.Errorf("Expected bio to persist, got %v", user["bio"])
	}
}

func TestUpdateProfileUsernameConflict(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "alice@example.com", "password123")
	bob := app.registerUser(t, "bob@example.com", "password123")

	rec := app.doJSON(t, http.MethodPut, "/api/users/profile", bob, map[string]any{
		"username": "alice@example.com",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for taken username, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChangeEmailAndVerify(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "alice@example.com", "password123")

	// Wrong password is rejected
	rec := app.doJSON(t, http.MethodPut, "/api/users/email", token, map[string]any{
		"newEmail":        "new@example.com",
		"currentPassword": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for wrong password, got %d", rec.Code)
	}

	rec = app.doJSON(t, http.MethodPut, "/api/users/email", token, map[string]any{
		"newEmail":        "new@example.com",
		"currentPassword": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ChangeEmail failed: %s", rec.Body.String())
	}
	verifyToken, ok := decodeBody(t, rec)["verificationToken"].(string)
	if !ok || len(verifyToken) != 64 {
		t.Fatalf("Expected 64-char verification token in test mode, got %v", verifyToken)
	}

	var user models.User
	if err := app.db.Where("email = ?", "new@example.com").First(&user).Error; err != nil {
		t.Fatalf("User email was not updated: %v", err)
	}
	if user.EmailVerified {
		t.Error("Email should be unverified after a change")
	}

	rec = app.doJSON(t, http.MethodGet, "/api/users/verify-email/"+verifyToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("VerifyEmail failed: %s", rec.Body.String())
	}

	if err := app.db.First(&user, user.ID).Error; err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !user.EmailVerified {
		t.Error("Email should be verified after using the token")
	}
	if user.EmailVerificationToken != nil {
		t.Error("Verification token should be cleared")
	}

	// A second use fails
	rec = app.doJSON(t, http.MethodGet, "/api/users/verify-email/"+verifyToken, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on token reuse, got %d", rec.Code)
	}
}

func TestVerifyEmailBogusToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(t, http.MethodGet, "/api/users/verify-email/"+strings.Repeat("f", 64), "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bogus token, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Invalid verification token" {
		t.Errorf("Unexpected error: %v", body["error"])
	}
}
