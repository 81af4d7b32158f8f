package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/logger"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	audit *services.AuditService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24, 30)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.Workflow{},
		&models.WorkflowStep{},
		&models.CaseFile{},
		&models.CaseSequence{},
		&models.AuditLog{},
		&models.AuditExportCursor{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	auditService := services.NewAuditService(db, nil, 100)
	sequenceService := services.NewSequenceService(db)

	authHandler := NewAuthHandler(db, auditService)
	documentsHandler := NewDocumentsHandler(db, auditService)
	workflowsHandler := NewWorkflowsHandler(db, auditService)
	caseFilesHandler := NewCaseFilesHandler(db, auditService, sequenceService)
	adminHandler := NewAdminHandler(db, auditService)
	dashboardHandler := NewDashboardHandler(db)
	auditHandler := NewAuditHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:3001"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/profile", authMiddleware.RequireAuth, authHandler.Profile)
	authRoutes.Put("/profile", authMiddleware.RequireAuth, authHandler.UpdateProfile)
	authRoutes.Put("/change-password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Get("/notifications", authMiddleware.RequireAuth, authHandler.Notifications)
	authRoutes.Put("/notifications", authMiddleware.RequireAuth, authHandler.UpdateNotifications)
	authRoutes.Get("/preferences", authMiddleware.RequireAuth, authHandler.Preferences)
	authRoutes.Put("/preferences", authMiddleware.RequireAuth, authHandler.UpdatePreferences)

	documentRoutes := api.Group("/documents", authMiddleware.RequireAuth)
	documentRoutes.Get("/", documentsHandler.List)
	documentRoutes.Post("/", documentsHandler.Create)
	documentRoutes.Get("/:id", documentsHandler.Get)
	documentRoutes.Put("/:id", documentsHandler.Update)
	documentRoutes.Delete("/:id", documentsHandler.Delete)

	workflowRoutes := api.Group("/workflows", authMiddleware.RequireAuth)
	workflowRoutes.Get("/", workflowsHandler.List)
	workflowRoutes.Post("/", workflowsHandler.Create)
	workflowRoutes.Post("/:id/advance", workflowsHandler.Advance)
	workflowRoutes.Post("/:id/backward", workflowsHandler.Backward)
	workflowRoutes.Get("/:id", workflowsHandler.Get)
	workflowRoutes.Put("/:id", workflowsHandler.Update)
	workflowRoutes.Delete("/:id", workflowsHandler.Delete)

	caseFileRoutes := api.Group("/case-files", authMiddleware.RequireAuth)
	caseFileRoutes.Get("/", caseFilesHandler.List)
	caseFileRoutes.Post("/", caseFilesHandler.Create)
	caseFileRoutes.Get("/:id", caseFilesHandler.Get)
	caseFileRoutes.Put("/:id", caseFilesHandler.Update)
	caseFileRoutes.Delete("/:id", caseFilesHandler.Delete)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/users", adminHandler.ListUsers)
	adminRoutes.Post("/users", adminHandler.CreateUser)
	adminRoutes.Get("/users/:id", adminHandler.GetUser)
	adminRoutes.Put("/users/:id", adminHandler.UpdateUser)
	adminRoutes.Delete("/users/:id", adminHandler.DeleteUser)
	adminRoutes.Get("/stats", adminHandler.Stats)

	dashboardRoutes := api.Group("/dashboard", authMiddleware.RequireAuth)
	dashboardRoutes.Get("/stats", dashboardHandler.Stats)
	dashboardRoutes.Get("/activities", dashboardHandler.Activities)
	dashboardRoutes.Get("/users", middleware.RequireRoles(models.UserRoleManager, models.UserRoleAdmin), dashboardHandler.Users)
	dashboardRoutes.Get("/document-stats", dashboardHandler.DocumentStats)
	dashboardRoutes.Get("/workflow-stats", dashboardHandler.WorkflowStats)

	auditRoutes := api.Group("/audit", authMiddleware.RequireAuth)
	auditRoutes.Get("/", auditHandler.List)
	auditRoutes.Get("/stats", auditHandler.Stats)
	auditRoutes.Get("/export", auditHandler.Export)

	return &testEnv{app: app, db: db, audit: auditService}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     "Test",
		LastName:      "User",
		Role:          role,
		IsActive:      true,
		Notifications: models.DefaultNotificationSettings(),
		Preferences:   models.DefaultPreferences(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in response, got %+v", body)
	}
	return data
}

func dataList(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array in response, got %+v", body)
	}
	return data
}
