package handlers

import (
	"net/http"
	"testing"
)

func TestRegisterAndMe(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "alice@example.com", "password123")

	rec := app.doJSON(t, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Me failed with %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	if user["email"] != "alice@example.com" {
		t.Errorf("Unexpected user payload: %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Error("Password hash must never be returned")
	}

	// Registration creates a welcome notification
	rec = app.doJSON(t, http.MethodGet, "/api/notifications/unread-count", token, nil)
	body = decodeBody(t, rec)
	if body["unreadCount"].(float64) != 1 {
		t.Errorf("Expected 1 unread welcome notification, got %v", body["unreadCount"])
	}
}

func TestRegisterDuplicate(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "alice@example.com", "password123")

	rec := app.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice@example.com",
		"email":    "alice@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate registration, got %d", rec.Code)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for short password, got %d", rec.Code)
	}
}

func TestLoginUniformErrors(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "alice@example.com", "password123")

	wrongPassword := app.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	unknownEmail := app.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "whatever",
	})

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for both, got %d and %d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Error("Login failures must be indistinguishable")
	}
}

func TestLoginRecordsLastLogin(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "alice@example.com", "password123")

	rec := app.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Login failed: %s", rec.Body.String())
	}
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	if user["lastLogin"] == nil {
		t.Error("lastLogin should be set after login")
	}
	if body["token"] == nil || body["token"] == "" {
		t.Error("Login should return a JWT")
	}
}

func TestChangePassword(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "alice@example.com", "password123")

	// Wrong current password is rejected
	rec := app.doJSON(t, http.MethodPut, "/api/auth/change-password", token, map[string]string{
		"currentPassword": "not-my-password",
		"newPassword":     "another-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong current password, got %d", rec.Code)
	}

	rec = app.doJSON(t, http.MethodPut, "/api/auth/change-password", token, map[string]string{
		"currentPassword": "password123",
		"newPassword":     "another-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Change password failed: %s", rec.Body.String())
	}

	rec = app.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "another-password",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("New password should log in, got %d", rec.Code)
	}
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	app := newTestApp(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/gallery"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodGet, "/api/uploads"},
	}
	for _, p := range paths {
		rec := app.doJSON(t, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s should return 401, got %d", p.method, p.path, rec.Code)
		}
	}
}
