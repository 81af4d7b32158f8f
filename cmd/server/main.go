package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicdocs/backend/internal/config"
	"github.com/civicdocs/backend/internal/database"
	"github.com/civicdocs/backend/internal/handlers"
	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/internal/storage"
	"github.com/civicdocs/backend/pkg/logger"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours, cfg.JWT.RefreshDays)

	db, err := database.Connect(cfg.DB, cfg.Admin)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	var storageClient *storage.MinIOClient
	if cfg.MinIO.Endpoint != "" {
		storageClient, err = storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			log.Fatalf("minio initialization failed: %v", err)
		}
		if err := storageClient.EnsureBucket(context.Background()); err != nil {
			log.Fatalf("failed ensuring minio bucket: %v", err)
		}
	}

	auditService := services.NewAuditService(db, storageClient, cfg.Audit.QueueSize)
	auditService.StartExporter(cfg.Audit.ExportInterval)
	sequenceService := services.NewSequenceService(db)

	app := buildApp(db, auditService, sequenceService, cfg.Server.FrontendURL)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
		"driver":  cfg.DB.Driver,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			auditService.Flush()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

func buildApp(db *gorm.DB, auditService *services.AuditService, sequenceService *services.SequenceService, frontendURL string) *fiber.App {
	authHandler := handlers.NewAuthHandler(db, auditService)
	documentsHandler := handlers.NewDocumentsHandler(db, auditService)
	workflowsHandler := handlers.NewWorkflowsHandler(db, auditService)
	caseFilesHandler := handlers.NewCaseFilesHandler(db, auditService, sequenceService)
	adminHandler := handlers.NewAdminHandler(db, auditService)
	dashboardHandler := handlers.NewDashboardHandler(db)
	auditHandler := handlers.NewAuditHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(frontendURL))
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

	return app
}
