package handlers

import (
	"strings"
	"time"

	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CaseFilesHandler struct {
	DB       *gorm.DB
	Audit    *services.AuditService
	Sequence *services.SequenceService
}

func NewCaseFilesHandler(db *gorm.DB, audit *services.AuditService, sequence *services.SequenceService) *CaseFilesHandler {
	return &CaseFilesHandler{DB: db, Audit: audit, Sequence: sequence}
}

func (h *CaseFilesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c, 10)
	query := services.ScopeQuery(h.DB.Model(&models.CaseFile{}), currentUser, services.ResourceCaseFile)

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := strings.TrimSpace(c.Query("priority")); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(case_number) LIKE ?",
			searchValue, searchValue, searchValue,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting case files")
	}

	var caseFiles []models.CaseFile
	if err := utils.ApplyPagination(query.Preload("Owner").Order("created_at DESC"), p).Find(&caseFiles).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing case files")
	}

	return utils.Paginated(c, caseFiles, p.Page, p.Limit, total)
}

type createCaseFileRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    models.CasePriority `json:"priority"`
	Category    string              `json:"category"`
}

func (h *CaseFilesHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createCaseFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}
	if req.Priority == "" {
		req.Priority = models.CasePriorityNormal
	}
	if !models.ValidCasePriority(req.Priority) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid priority")
	}

	caseNumber, err := h.Sequence.NextCaseNumber()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed allocating case number")
	}

	caseFile := models.CaseFile{
		CaseNumber:  caseNumber,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Status:      models.CaseFileStatusOpen,
		OwnerID:     currentUser.ID,
		Priority:    req.Priority,
		Category:    strings.TrimSpace(req.Category),
	}

	if err := h.DB.Create(&caseFile).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating case file")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "case_file.create", services.ResourceCaseFile, caseFile.ID.String(), map[string]interface{}{
		"case_number": caseFile.CaseNumber,
		"title":       caseFile.Title,
	}))

	return utils.Success(c, fiber.StatusCreated, caseFile)
}

func (h *CaseFilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	caseFileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid case file id")
	}

	var caseFile models.CaseFile
	if err := h.DB.Preload("Owner").First(&caseFile, "id = ?", caseFileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "case file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching case file")
	}

	if !services.CanAccessRecord(currentUser, services.ResourceCaseFile, caseFile.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	return utils.Success(c, fiber.StatusOK, caseFile)
}

type updateCaseFileRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *models.CaseFileStatus `json:"status"`
	Priority    *models.CasePriority   `json:"priority"`
	Category    *string                `json:"category"`
}

func (h *CaseFilesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	caseFileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid case file id")
	}

	var caseFile models.CaseFile
	if err := h.DB.First(&caseFile, "id = ?", caseFileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "case file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching case file")
	}

	if !services.CanAccessRecord(currentUser, services.ResourceCaseFile, caseFile.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	var req updateCaseFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		value := strings.TrimSpace(*req.Title)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "title cannot be empty")
		}
		updates["title"] = value
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if !models.ValidCaseFileStatus(*req.Status) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid case file status")
		}
		updates["status"] = *req.Status
		if *req.Status == models.CaseFileStatusClosed && caseFile.Status != models.CaseFileStatusClosed {
			updates["closed_at"] = time.Now().UTC()
		}
	}
	if req.Priority != nil {
		if !models.ValidCasePriority(*req.Priority) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid priority")
		}
		updates["priority"] = *req.Priority
	}
	if req.Category != nil {
		updates["category"] = strings.TrimSpace(*req.Category)
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.CaseFile{}).Where("id = ?", caseFile.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating case file")
	}

	var updated models.CaseFile
	if err := h.DB.Preload("Owner").First(&updated, "id = ?", caseFile.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated case file")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "case_file.update", services.ResourceCaseFile, caseFile.ID.String(), map[string]interface{}{
		"case_number": updated.CaseNumber,
	}))

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *CaseFilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	caseFileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid case file id")
	}

	var caseFile models.CaseFile
	if err := h.DB.First(&caseFile, "id = ?", caseFileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "case file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching case file")
	}

	if !services.CanAccessRecord(currentUser, services.ResourceCaseFile, caseFile.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	if err := h.DB.Delete(&models.CaseFile{}, "id = ?", caseFile.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting case file")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "case_file.delete", services.ResourceCaseFile, caseFile.ID.String(), map[string]interface{}{
		"case_number": caseFile.CaseNumber,
	}))

	return utils.Message(c, fiber.StatusOK, "case file deleted")
}
