package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/civicdocs/backend/internal/models"
)

func TestAdminEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	member, memberToken := createTestUser(t, env.db, "admin-member@test.com", "password123", models.UserRoleUser)
	_, managerToken := createTestUser(t, env.db, "admin-manager@test.com", "password123", models.UserRoleManager)

	t.Run("GET /api/admin/users non-admin is forbidden", func(t *testing.T) {
		for _, token := range []string{memberToken, managerToken} {
			resp := performRequest(t, env.app, http.MethodGet, "/api/admin/users", nil, authHeaders(token))
			body := decodeJSONMap(t, resp)
			assertStatus(t, resp, http.StatusForbidden)
			assertEnvelopeError(t, body, "admin access required")
		}
	})

	t.Run("GET /api/admin/users lists with pagination", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/admin/users?page=1&limit=2", nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if items := dataList(t, body); len(items) != 2 {
			t.Fatalf("expected two users per page, got %d", len(items))
		}
		pagination, ok := body["pagination"].(map[string]any)
		if !ok {
			t.Fatalf("expected pagination object in list response")
		}
		if pagination["total"] != float64(3) {
			t.Fatalf("expected total=3, got %v", pagination["total"])
		}
	})

	t.Run("GET /api/admin/users filters by role", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/admin/users?role=manager", nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if items := dataList(t, body); len(items) != 1 {
			t.Fatalf("expected one manager, got %d", len(items))
		}
	})

	t.Run("POST /api/admin/users creates user with chosen role", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/users", map[string]any{
			"email":     "provisioned@test.com",
			"password":  "password123",
			"firstName": "Prov",
			"lastName":  "Isioned",
			"role":      "manager",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		if data := dataMap(t, body); data["role"] != "manager" {
			t.Fatalf("expected manager role, got %v", data["role"])
		}
	})

	t.Run("POST /api/admin/users unknown role rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/users", map[string]any{
			"email":     "badrole@test.com",
			"password":  "password123",
			"firstName": "Bad",
			"lastName":  "Role",
			"role":      "superuser",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid role")
	})

	t.Run("POST /api/admin/users duplicate email rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/users", map[string]any{
			"email":     "admin-member@test.com",
			"password":  "password123",
			"firstName": "Dup",
			"lastName":  "Licate",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "email already exists")
	})

	t.Run("PUT /api/admin/users/:id promotes and deactivates", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, fmt.Sprintf("/api/admin/users/%s", member.ID), map[string]any{
			"role":     "manager",
			"isActive": false,
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["role"] != "manager" {
			t.Fatalf("expected promoted role, got %v", data["role"])
		}
		if data["isActive"] != false {
			t.Fatalf("expected deactivated user, got %v", data["isActive"])
		}

		// Deactivated users lose API access immediately.
		profileResp := performRequest(t, env.app, http.MethodGet, "/api/auth/profile", nil, authHeaders(memberToken))
		assertStatus(t, profileResp, http.StatusUnauthorized)
	})

	t.Run("PUT /api/admin/users/:id not found", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/admin/users/00000000-0000-0000-0000-000000000000", map[string]any{
			"firstName": "Ghost",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, body, "user not found")
	})

	t.Run("DELETE /api/admin/users/:id self-delete is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, fmt.Sprintf("/api/admin/users/%s", admin.ID), nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "cannot delete your own account")
	})

	t.Run("DELETE /api/admin/users/:id removes other user", func(t *testing.T) {
		victim, _ := createTestUser(t, env.db, "admin-victim@test.com", "password123", models.UserRoleUser)
		resp := performRequest(t, env.app, http.MethodDelete, fmt.Sprintf("/api/admin/users/%s", victim.ID), nil, authHeaders(adminToken))
		assertStatus(t, resp, http.StatusOK)

		var count int64
		if err := env.db.Model(&models.User{}).Where("id = ?", victim.ID).Count(&count).Error; err != nil {
			t.Fatalf("failed counting users: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected user deleted")
		}
	})

	t.Run("GET /api/admin/stats returns global counts", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/admin/stats", nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["totalUsers"] == nil || data["admins"] == nil {
			t.Fatalf("expected user counts in stats, got %+v", data)
		}
	})
}
