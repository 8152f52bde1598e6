package handlers

import (
	"net/http"
	"testing"
)

func TestPasswordResetRequestUniformResponse(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "alice@example.com", "password123")

	// Production mode: no dev token in the payload
	app.cfg.Env = "production"

	known := app.doJSON(t, http.MethodPost, "/api/password-reset/request", "",
		map[string]string{"email": "alice@example.com"})
	unknown := app.doJSON(t, http.MethodPost, "/api/password-reset/request", "",
		map[string]string{"email": "nobody@example.com"})

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("Both requests must return 200, got %d and %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Errorf("Responses must be byte-identical:\nknown:   %s\nunknown: %s",
			known.Body.String(), unknown.Body.String())
	}

	body := decodeBody(t, known)
	if body["success"] != true {
		t.Error("Expected success:true")
	}
	if body["message"] != "If an account exists with this email, you will receive reset instructions" {
		t.Errorf("Unexpected message: %v", body["message"])
	}
	if _, leaked := body["resetToken"]; leaked {
		t.Error("resetToken must not appear in production responses")
	}
}

func TestPasswordResetRequestDevToken(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "alice@example.com", "password123")
	app.cfg.Env = "development"

	rec := app.doJSON(t, http.MethodPost, "/api/password-reset/request", "",
		map[string]string{"email": "alice@example.com"})
	body := decodeBody(t, rec)

	token, ok := body["resetToken"].(string)
	if !ok || len(token) != 64 {
		t.Fatalf("Expected a 64-char dev resetToken, got %v", body["resetToken"])
	}

	// Unknown accounts get the same shape minus the token even in dev
	rec = app.doJSON(t, http.MethodPost, "/api/password-reset/request", "",
		map[string]string{"email": "nobody@example.com"})
	body = decodeBody(t, rec)
	if _, present := body["resetToken"]; present {
		t.Error("Unknown accounts must not receive a resetToken")
	}
}

func TestPasswordResetFullFlow(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "alice@example.com", "password123")
	app.cfg.Env = "development"

	rec := app.doJSON(t, http.MethodPost, "/api/password-reset/request", "",
		map[string]string{"email": "alice@example.com"})
	token := decodeBody(t, rec)["resetToken"].(string)

	// Validate before use
	rec = app.doJSON(t, http.MethodGet, "/api/password-reset/validate/"+token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Validate failed with %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["valid"] != true || body["email"] != "alice@example.com" {
		t.Errorf("Unexpected validate payload: %v", body)
	}

	// Reset
	rec = app.doJSON(t, http.MethodPost, "/api/password-reset/reset", "", map[string]string{
		"token":           token,
		"newPassword":     "brand-new-password",
		"confirmPassword": "brand-new-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Reset failed with %d: %s", rec.Code, rec.Body.String())
	}

	// Old password no longer works, new one does
	rec = app.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Old password should be rejected, got %d", rec.Code)
	}
	rec = app.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "brand-new-password",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("New password should work, got %d: %s", rec.Code, rec.Body.String())
	}

	// Token is single-use
	rec = app.doJSON(t, http.MethodPost, "/api/password-reset/reset", "", map[string]string{
		"token":           token,
		"newPassword":     "yet-another-password",
		"confirmPassword": "yet-another-password",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Token reuse should return 400, got %d", rec.Code)
	}
}

func TestPasswordResetMismatchedConfirmation(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(t, http.MethodPost, "/api/password-reset/reset", "", map[string]string{
		"token":           "whatever",
		"newPassword":     "password-one",
		"confirmPassword": "password-two",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for mismatched passwords, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Passwords do not match" {
		t.Errorf("Unexpected error: %v", body["error"])
	}
}

func TestPasswordResetWeakPassword(t *testing.T) {
	app := newTestApp(t)

	// Weak password reported even for a nonexistent token
	rec := app.doJSON(t, http.MethodPost, "/api/password-reset/reset", "", map[string]string{
		"token":           "no-such-token",
		"newPassword":     "short",
		"confirmPassword": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Password must be at least 6 characters long" {
		t.Errorf("Expected the weak-password error, got %v", body["error"])
	}
}

func TestPasswordResetValidateBadToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(t, http.MethodGet, "/api/password-reset/validate/deadbeef", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["valid"] != false {
		t.Errorf("Expected valid:false, got %v", body)
	}
}
