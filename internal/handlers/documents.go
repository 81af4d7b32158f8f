package handlers

import (
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

type DocumentsHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewDocumentsHandler(db *gorm.DB, audit *services.AuditService) *DocumentsHandler {
	return &DocumentsHandler{DB: db, Audit: audit}
}

func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c, 10)
	query := services.ScopeQuery(h.DB.Model(&models.Document{}), currentUser, services.ResourceDocument)

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if docType := strings.TrimSpace(c.Query("type")); docType != "" {
		query = query.Where("type = ?", docType)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchValue, searchValue)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting documents")
	}

	var documents []models.Document
	if err := utils.ApplyPagination(query.Preload("Owner").Order("created_at DESC"), p).Find(&documents).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing documents")
	}

	return utils.Paginated(c, documents, p.Page, p.Limit, total)
}

type createDocumentRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Type        models.DocumentType `json:"type"`
	FilePath    *string             `json:"filePath"`
	FileSize    *int64              `json:"fileSize"`
	FileType    *string             `json:"fileType"`
}

func (h *DocumentsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}
	if req.Type == "" {
		req.Type = models.DocumentTypeOther
	}
	if !models.ValidDocumentType(req.Type) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid document type")
	}

	document := models.Document{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Type:        req.Type,
		Status:      models.DocumentStatusDraft,
		OwnerID:     currentUser.ID,
		FilePath:    req.FilePath,
		FileSize:    req.FileSize,
		FileType:    req.FileType,
	}

	if err := h.DB.Create(&document).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating document")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "document.create", services.ResourceDocument, document.ID.String(), map[string]interface{}{
		"title": document.Title,
		"type":  string(document.Type),
	}))

	return utils.Success(c, fiber.StatusCreated, document)
}

func (h *DocumentsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	documentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid document id")
	}

	var document models.Document
	if err := h.DB.Preload("Owner").First(&document, "id = ?", documentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "document not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching document")
	}

	if !services.CanAccessRecord(currentUser, services.ResourceDocument, document.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	return utils.Success(c, fiber.StatusOK, document)
}

type updateDocumentRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Type        *models.DocumentType   `json:"type"`
	Status      *models.DocumentStatus `json:"status"`
	FilePath    *string                `json:"filePath"`
	FileSize    *int64                 `json:"fileSize"`
	FileType    *string                `json:"fileType"`
}

func (h *DocumentsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	documentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid document id")
	}

	var document models.Document
	if err := h.DB.First(&document, "id = ?", documentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "document not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching document")
	}

	if !services.CanAccessRecord(currentUser, services.ResourceDocument, document.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	var req updateDocumentRequest
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
	if req.Type != nil {
		if !models.ValidDocumentType(*req.Type) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid document type")
		}
		updates["type"] = *req.Type
	}
	if req.Status != nil {
		if !models.ValidDocumentStatus(*req.Status) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid document status")
		}
		if !models.CanTransitionDocument(document.Status, *req.Status) {
			return utils.Error(c, fiber.StatusBadRequest,
				fmt.Sprintf("cannot transition document from %s to %s", document.Status, *req.Status))
		}
		updates["status"] = *req.Status
		if *req.Status == models.DocumentStatusArchived && document.Status != models.DocumentStatusArchived {
			updates["archived_at"] = time.Now().UTC()
		}
	}
	if req.FilePath != nil {
		updates["file_path"] = *req.FilePath
	}
	if req.FileSize != nil {
		updates["file_size"] = *req.FileSize
	}
	if req.FileType != nil {
		updates["file_type"] = *req.FileType
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Document{}).Where("id = ?", document.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating document")
	}

	var updated models.Document
	if err := h.DB.Preload("Owner").First(&updated, "id = ?", document.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated document")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "document.update", services.ResourceDocument, document.ID.String(), map[string]interface{}{
		"title": updated.Title,
	}))

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *DocumentsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	documentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid document id")
	}

	var document models.Document
	if err := h.DB.First(&document, "id = ?", documentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "document not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching document")
	}

	if !services.CanAccessRecord(currentUser, services.ResourceDocument, document.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	if err := h.DB.Delete(&models.Document{}, "id = ?", document.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting document")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "document.delete", services.ResourceDocument, document.ID.String(), map[string]interface{}{
		"title": document.Title,
	}))

	return utils.Message(c, fiber.StatusOK, "document deleted")
}
