package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/civicdocs/backend/internal/models"
	"gorm.io/gorm"
)

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("POST /api/auth/register creates user with user role", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "clerk@test.com",
			"password":  "password123",
			"firstName": "Pat",
			"lastName":  "Lund",
			"role":      "admin",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, body)
		if data["token"] == "" || data["token"] == nil {
			t.Fatalf("expected token in register response")
		}
		if data["refreshToken"] == "" || data["refreshToken"] == nil {
			t.Fatalf("expected refreshToken in register response")
		}
		user := data["user"].(map[string]any)
		if user["role"] != "user" {
			t.Fatalf("expected requested admin role to be ignored, got %v", user["role"])
		}
		if user["fullName"] != "Pat Lund" {
			t.Fatalf("expected computed fullName, got %v", user["fullName"])
		}
		if _, exposed := user["passwordHash"]; exposed {
			t.Fatalf("password hash must not be serialized")
		}
	})

	t.Run("POST /api/auth/register duplicate email returns bad request", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "clerk@test.com",
			"password":  "password123",
			"firstName": "Pat",
			"lastName":  "Lund",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "email already exists")
	})

	// The register handler's existence check races with concurrent writes,
	// so it relies on the unique index surfacing as ErrDuplicatedKey.
	t.Run("duplicate email surfaces as ErrDuplicatedKey from the index", func(t *testing.T) {
		dup := models.User{
			Email:        "clerk@test.com",
			PasswordHash: "irrelevant",
			FirstName:    "Other",
			LastName:     "Clerk",
			Role:         models.UserRoleUser,
			IsActive:     true,
		}
		err := env.db.Create(&dup).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
		}
	})

	t.Run("POST /api/auth/register short password rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "short@test.com",
			"password":  "short",
			"firstName": "A",
			"lastName":  "B",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "password must be at least 8 characters")
	})

	t.Run("POST /api/auth/login returns token and stamps lastLogin", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "clerk@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["token"] == nil {
			t.Fatalf("expected token in login response")
		}

		var user models.User
		if err := env.db.First(&user, "email = ?", "clerk@test.com").Error; err != nil {
			t.Fatalf("failed loading user: %v", err)
		}
		if user.LastLogin == nil {
			t.Fatalf("expected lastLogin to be stamped")
		}
	})

	t.Run("POST /api/auth/login wrong password returns generic error", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "clerk@test.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("POST /api/auth/login unknown email uses same error as wrong password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "nobody@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("POST /api/auth/login deactivated account rejected", func(t *testing.T) {
		inactive, _ := createTestUser(t, env.db, "inactive@test.com", "password123", models.UserRoleUser)
		if err := env.db.Model(&models.User{}).Where("id = ?", inactive.ID).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed deactivating user: %v", err)
		}

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "inactive@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("GET /api/auth/profile requires token", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/profile", nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("GET /api/auth/profile returns current user", func(t *testing.T) {
		user, token := createTestUser(t, env.db, "profile@test.com", "password123", models.UserRoleUser)
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/profile", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["id"] != user.ID.String() {
			t.Fatalf("expected profile id %s, got %v", user.ID, data["id"])
		}
	})

	t.Run("PUT /api/auth/profile partial update keeps other fields", func(t *testing.T) {
		user, token := createTestUser(t, env.db, "profile-update@test.com", "password123", models.UserRoleUser)

		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/profile", map[string]any{
			"department": "Planning",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["department"] != "Planning" {
			t.Fatalf("expected updated department, got %v", data["department"])
		}
		if data["firstName"] != user.FirstName {
			t.Fatalf("expected firstName untouched, got %v", data["firstName"])
		}
	})

	t.Run("PUT /api/auth/profile empty firstName rejected", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "profile-empty@test.com", "password123", models.UserRoleUser)
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/profile", map[string]any{
			"firstName": "",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "firstName cannot be empty")
	})

	t.Run("PUT /api/auth/change-password rotates hash", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "rotate@test.com", "password123", models.UserRoleUser)

		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/change-password", map[string]any{
			"oldPassword": "password123",
			"newPassword": "new-password-456",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		loginResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "rotate@test.com",
			"password": "new-password-456",
		}, nil)
		assertStatus(t, loginResp, http.StatusOK)
	})

	t.Run("PUT /api/auth/change-password wrong old password rejected", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "rotate-bad@test.com", "password123", models.UserRoleUser)
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/change-password", map[string]any{
			"oldPassword": "not-the-password",
			"newPassword": "new-password-456",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "oldPassword is incorrect")
	})

	t.Run("notification settings round-trip", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "notify@test.com", "password123", models.UserRoleUser)

		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/notifications", map[string]any{
			"emailEnabled":    false,
			"documentUpdates": true,
			"workflowUpdates": true,
			"caseFileUpdates": false,
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		getResp := performRequest(t, env.app, http.MethodGet, "/api/auth/notifications", nil, authHeaders(token))
		body := decodeJSONMap(t, getResp)
		assertStatus(t, getResp, http.StatusOK)

		data := dataMap(t, body)
		if data["emailEnabled"] != false {
			t.Fatalf("expected emailEnabled=false after update, got %v", data["emailEnabled"])
		}
	})

	t.Run("PUT /api/auth/preferences validates itemsPerPage", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "prefs@test.com", "password123", models.UserRoleUser)
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/preferences", map[string]any{
			"theme":        "dark",
			"locale":       "en",
			"itemsPerPage": 500,
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "itemsPerPage must be between 1 and 100")
	})

	t.Run("POST /api/auth/logout records audit entry", func(t *testing.T) {
		user, token := createTestUser(t, env.db, "logout@test.com", "password123", models.UserRoleUser)
		resp := performRequest(t, env.app, http.MethodPost, "/api/auth/logout", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		env.audit.Flush()

		var count int64
		if err := env.db.Model(&models.AuditLog{}).
			Where("action = ? AND user_id = ?", "user.logout", user.ID).
			Count(&count).Error; err != nil {
			t.Fatalf("failed counting audit rows: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected one user.logout audit row, got %d", count)
		}
	})
}
