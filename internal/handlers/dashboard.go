package handlers

import (
	"time"

	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// DashboardHandler computes role-scoped counts on demand. Counts are cheap
// indexed aggregates and are recomputed per request.
type DashboardHandler struct {
	DB *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	stats := fiber.Map{}
	monthStart := time.Now().UTC().Truncate(24 * time.Hour)
	monthStart = time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)

	count := func(query *gorm.DB) int64 {
		var n int64
		query.Count(&n)
		return n
	}

	switch currentUser.Role {
	case models.UserRoleAdmin:
		stats["totalUsers"] = count(h.DB.Model(&models.User{}))
		fallthrough
	case models.UserRoleManager:
		stats["totalDocuments"] = count(h.DB.Model(&models.Document{}))
		stats["totalWorkflows"] = count(h.DB.Model(&models.Workflow{}))
		stats["totalCaseFiles"] = count(h.DB.Model(&models.CaseFile{}))
		stats["pendingWorkflows"] = count(h.DB.Model(&models.Workflow{}).Where("status = ?", models.WorkflowStatusPending))
		stats["activeWorkflows"] = count(h.DB.Model(&models.Workflow{}).Where("status = ?", models.WorkflowStatusInProgress))
		stats["openCaseFiles"] = count(h.DB.Model(&models.CaseFile{}).Where("status = ?", models.CaseFileStatusOpen))
		stats["documentsThisMonth"] = count(h.DB.Model(&models.Document{}).Where("created_at >= ?", monthStart))
		stats["myDocuments"] = count(h.DB.Model(&models.Document{}).Where("owner_id = ?", currentUser.ID))
		stats["myWorkflows"] = count(h.DB.Model(&models.Workflow{}).Where("created_by_id = ?", currentUser.ID))
	default:
		stats["myDocuments"] = count(h.DB.Model(&models.Document{}).Where("owner_id = ?", currentUser.ID))
		stats["myWorkflows"] = count(h.DB.Model(&models.Workflow{}).Where("created_by_id = ?", currentUser.ID))
		stats["myCaseFiles"] = count(h.DB.Model(&models.CaseFile{}).Where("owner_id = ?", currentUser.ID))
		stats["pendingWorkflows"] = count(h.DB.Model(&models.Workflow{}).
			Where("created_by_id = ? AND status = ?", currentUser.ID, models.WorkflowStatusPending))
		stats["openCaseFiles"] = count(h.DB.Model(&models.CaseFile{}).
			Where("owner_id = ? AND status = ?", currentUser.ID, models.CaseFileStatusOpen))
		stats["documentsThisMonth"] = count(h.DB.Model(&models.Document{}).
			Where("owner_id = ? AND created_at >= ?", currentUser.ID, monthStart))
	}

	return utils.Success(c, fiber.StatusOK, stats)
}

// Activities returns the caller's recent audit events, scoped by the same
// policy as the audit log itself.
func (h *DashboardHandler) Activities(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	limit := c.QueryInt("limit", 10)
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	query := services.ScopeQuery(h.DB.Model(&models.AuditLog{}), currentUser, services.ResourceAuditLog)

	var logs []models.AuditLog
	if err := query.Preload("User").Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing activities")
	}

	return utils.Success(c, fiber.StatusOK, logs)
}

// Users returns the most recently active users. The route is gated to
// managers and admins via middleware.RequireRoles.
func (h *DashboardHandler) Users(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit > 50 {
		limit = 50
	}

	var users []models.User
	if err := h.DB.Order("last_login DESC").Limit(limit).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Success(c, fiber.StatusOK, users)
}

func (h *DashboardHandler) DocumentStats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	base := func() *gorm.DB {
		return services.ScopeQuery(h.DB.Model(&models.Document{}), currentUser, services.ResourceDocument)
	}

	byStatus := fiber.Map{}
	for _, status := range []models.DocumentStatus{
		models.DocumentStatusDraft, models.DocumentStatusReview,
		models.DocumentStatusApproved, models.DocumentStatusArchived,
	} {
		var n int64
		base().Where("status = ?", status).Count(&n)
		byStatus[string(status)] = n
	}

	byType := fiber.Map{}
	for _, docType := range []models.DocumentType{
		models.DocumentTypeContract, models.DocumentTypeReport, models.DocumentTypeMemo,
		models.DocumentTypePolicy, models.DocumentTypeForm, models.DocumentTypeOther,
	} {
		var n int64
		base().Where("type = ?", docType).Count(&n)
		byType[string(docType)] = n
	}

	var total int64
	base().Count(&total)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"total":    total,
		"byStatus": byStatus,
		"byType":   byType,
	})
}

func (h *DashboardHandler) WorkflowStats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	base := func() *gorm.DB {
		return services.ScopeQuery(h.DB.Model(&models.Workflow{}), currentUser, services.ResourceWorkflow)
	}

	byStatus := fiber.Map{}
	for _, status := range []models.WorkflowStatus{
		models.WorkflowStatusPending, models.WorkflowStatusInProgress,
		models.WorkflowStatusCompleted, models.WorkflowStatusCancelled,
	} {
		var n int64
		base().Where("status = ?", status).Count(&n)
		byStatus[string(status)] = n
	}

	var total int64
	base().Count(&total)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"total":    total,
		"byStatus": byStatus,
	})
}
