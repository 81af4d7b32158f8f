package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuditHandler struct {
	DB *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{DB: db}
}

func (h *AuditHandler) scopedQuery(c *fiber.Ctx, currentUser *models.User) *gorm.DB {
	query := services.ScopeQuery(h.DB.Model(&models.AuditLog{}), currentUser, services.ResourceAuditLog)

	if action := strings.TrimSpace(c.Query("action")); action != "" {
		query = query.Where("action = ?", action)
	}
	if resourceType := strings.TrimSpace(c.Query("resourceType")); resourceType != "" {
		query = query.Where("resource_type = ?", resourceType)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(action) LIKE ? OR LOWER(details) LIKE ? OR LOWER(resource_type) LIKE ?",
			searchValue, searchValue, searchValue,
		)
	}

	return query
}

func (h *AuditHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c, 50)
	query := h.scopedQuery(c, currentUser)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting audit logs")
	}

	var logs []models.AuditLog
	if err := utils.ApplyPagination(query.Preload("User").Order("created_at DESC"), p).Find(&logs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing audit logs")
	}

	return utils.Paginated(c, logs, p.Page, p.Limit, total)
}

type auditGroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

func (h *AuditHandler) Stats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	scoped := func() *gorm.DB {
		return services.ScopeQuery(h.DB.Model(&models.AuditLog{}), currentUser, services.ResourceAuditLog)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing audit stats")
	}

	groupCounts := func(column string) []auditGroupCount {
		var rows []auditGroupCount
		scoped().Select(column + " AS key, COUNT(*) AS count").
			Group(column).
			Order("count DESC").
			Limit(20).
			Scan(&rows)
		return rows
	}

	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	var last24h int64
	scoped().Where("created_at >= ?", dayAgo).Count(&last24h)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"total":          total,
		"last24h":        last24h,
		"byAction":       groupCounts("action"),
		"byResourceType": groupCounts("resource_type"),
		"byStatus":       groupCounts("status"),
	})
}

// Export downloads the caller-visible audit trail as CSV or JSON.
func (h *AuditHandler) Export(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format", "csv")))
	if format != "csv" && format != "json" {
		return utils.Error(c, fiber.StatusBadRequest, "format must be csv or json")
	}

	var logs []models.AuditLog
	if err := h.scopedQuery(c, currentUser).
		Order("created_at DESC").
		Limit(10000).
		Find(&logs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading audit logs")
	}

	if format == "json" {
		c.Set("Content-Type", "application/json")
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "audit-log.json"))
		return c.JSON(fiber.Map{"success": true, "data": logs})
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "audit-log.csv"))

	writer := csv.NewWriter(c.Response().BodyWriter())
	_ = writer.Write([]string{"Timestamp", "Action", "Resource Type", "Resource ID", "Status", "IP Address", "Details"})

	for _, row := range logs {
		detailStr := ""
		if row.Details != nil {
			if encoded, err := json.Marshal(row.Details); err == nil {
				detailStr = string(encoded)
			}
		}

		_ = writer.Write([]string{
			row.CreatedAt.Format(time.RFC3339),
			row.Action,
			row.ResourceType,
			row.ResourceID,
			string(row.Status),
			row.IPAddress,
			detailStr,
		})
	}

	writer.Flush()
	return nil
}
