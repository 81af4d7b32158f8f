package handlers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkflowsHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewWorkflowsHandler(db *gorm.DB, audit *services.AuditService) *WorkflowsHandler {
	return &WorkflowsHandler{DB: db, Audit: audit}
}

func (h *WorkflowsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c, 10)
	query := services.ScopeQuery(h.DB.Model(&models.Workflow{}), currentUser, services.ResourceWorkflow)

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", searchValue, searchValue)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting workflows")
	}

	var workflows []models.Workflow
	if err := utils.ApplyPagination(query.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).Preload("CreatedBy").Order("created_at DESC"), p).Find(&workflows).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing workflows")
	}

	return utils.Paginated(c, workflows, p.Page, p.Limit, total)
}

type workflowStepRequest struct {
	StepNumber int                       `json:"stepNumber"`
	Type       models.WorkflowStepType   `json:"type"`
	AssignedTo *uuid.UUID                `json:"assignedTo"`
	Status     models.WorkflowStepStatus `json:"status"`
	Comment    string                    `json:"comment"`
}

type createWorkflowRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	DocumentID  *uuid.UUID            `json:"documentID"`
	Steps       []workflowStepRequest `json:"steps"`
}

func buildSteps(workflowID uuid.UUID, reqs []workflowStepRequest) ([]models.WorkflowStep, error) {
	steps := make([]models.WorkflowStep, 0, len(reqs))
	for i, req := range reqs {
		if !models.ValidWorkflowStepType(req.Type) {
			return nil, fmt.Errorf("step %d has invalid type %q", i+1, req.Type)
		}
		status := req.Status
		if status == "" {
			status = models.StepStatusPending
		}
		if !models.ValidWorkflowStepStatus(status) {
			return nil, fmt.Errorf("step %d has invalid status %q", i+1, status)
		}
		stepNumber := req.StepNumber
		if stepNumber == 0 {
			stepNumber = i + 1
		}
		step := models.WorkflowStep{
			WorkflowID: workflowID,
			StepNumber: stepNumber,
			Type:       req.Type,
			AssignedTo: req.AssignedTo,
			Status:     status,
			Comment:    strings.TrimSpace(req.Comment),
		}
		if status.Terminal() {
			now := time.Now().UTC()
			step.CompletedAt = &now
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (h *WorkflowsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	if req.DocumentID != nil {
		var document models.Document
		if err := h.DB.First(&document, "id = ?", *req.DocumentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusBadRequest, "document not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed fetching document")
		}
		if !services.CanAccessRecord(currentUser, services.ResourceDocument, document.OwnerID) {
			return utils.Error(c, fiber.StatusForbidden, "access denied")
		}
	}

	workflow := models.Workflow{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		DocumentID:  req.DocumentID,
		Status:      models.WorkflowStatusPending,
		CreatedByID: currentUser.ID,
	}
	workflow.ID = uuid.New()

	steps, err := buildSteps(workflow.ID, req.Steps)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	workflow.Steps = steps

	if err := h.DB.Create(&workflow).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating workflow")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "workflow.create", services.ResourceWorkflow, workflow.ID.String(), map[string]interface{}{
		"name":  workflow.Name,
		"steps": len(workflow.Steps),
	}))

	return utils.Success(c, fiber.StatusCreated, workflow)
}

func (h *WorkflowsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workflow, errResp := h.loadAuthorized(c, currentUser)
	if errResp != nil {
		return errResp(c)
	}

	return utils.Success(c, fiber.StatusOK, workflow)
}

// loadAuthorized fetches the workflow in the path and checks record access.
// On failure it returns a response func to keep handler bodies flat.
func (h *WorkflowsHandler) loadAuthorized(c *fiber.Ctx, currentUser *models.User) (*models.Workflow, func(*fiber.Ctx) error) {
	workflowID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, func(c *fiber.Ctx) error {
			return utils.Error(c, fiber.StatusBadRequest, "invalid workflow id")
		}
	}

	var workflow models.Workflow
	err = h.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).Preload("CreatedBy").Preload("Document").First(&workflow, "id = ?", workflowID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, func(c *fiber.Ctx) error {
				return utils.Error(c, fiber.StatusNotFound, "workflow not found")
			}
		}
		return nil, func(c *fiber.Ctx) error {
			return utils.Error(c, fiber.StatusInternalServerError, "failed fetching workflow")
		}
	}

	if !services.CanAccessRecord(currentUser, services.ResourceWorkflow, workflow.CreatedByID) {
		return nil, func(c *fiber.Ctx) error {
			return utils.Error(c, fiber.StatusForbidden, "access denied")
		}
	}

	return &workflow, nil
}

type updateWorkflowRequest struct {
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	// Raw so an explicit null (unlink the document) is distinguishable
	// from an omitted field.
	DocumentID json.RawMessage        `json:"documentID"`
	Status     *models.WorkflowStatus `json:"status"`
	Steps      *[]workflowStepRequest `json:"steps"`
}

func (h *WorkflowsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workflow, errResp := h.loadAuthorized(c, currentUser)
	if errResp != nil {
		return errResp(c)
	}

	var req updateWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		value := strings.TrimSpace(*req.Name)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = value
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if len(req.DocumentID) > 0 {
		if string(req.DocumentID) == "null" {
			updates["document_id"] = nil
		} else {
			var documentID uuid.UUID
			if err := json.Unmarshal(req.DocumentID, &documentID); err != nil {
				return utils.Error(c, fiber.StatusBadRequest, "invalid document id")
			}
			var document models.Document
			if err := h.DB.First(&document, "id = ?", documentID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return utils.Error(c, fiber.StatusBadRequest, "document not found")
				}
				return utils.Error(c, fiber.StatusInternalServerError, "failed fetching document")
			}
			if !services.CanAccessRecord(currentUser, services.ResourceDocument, document.OwnerID) {
				return utils.Error(c, fiber.StatusForbidden, "access denied")
			}
			updates["document_id"] = documentID
		}
	}

	// Steps are replaced wholesale when present; the replacement set is what
	// the completion check below sees.
	var newSteps []models.WorkflowStep
	if req.Steps != nil {
		built, err := buildSteps(workflow.ID, *req.Steps)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		}
		newSteps = built
	}

	// A completed workflow only carries terminal steps.
	if newSteps != nil && workflow.Status == models.WorkflowStatusCompleted {
		if !(&models.Workflow{Steps: newSteps}).StepsTerminal() {
			return utils.Error(c, fiber.StatusBadRequest, "cannot add unfinished steps to a completed workflow")
		}
	}

	if req.Status != nil {
		if !models.ValidWorkflowStatus(*req.Status) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid workflow status")
		}
		if !models.CanTransitionWorkflow(workflow.Status, *req.Status) {
			return utils.Error(c, fiber.StatusBadRequest,
				fmt.Sprintf("cannot transition workflow from %s to %s", workflow.Status, *req.Status))
		}
		if *req.Status == models.WorkflowStatusCompleted && workflow.Status != models.WorkflowStatusCompleted {
			check := workflow
			if newSteps != nil {
				check = &models.Workflow{Steps: newSteps}
			}
			if !check.StepsTerminal() {
				return utils.Error(c, fiber.StatusBadRequest, "cannot complete workflow with unfinished steps")
			}
			updates["completed_at"] = time.Now().UTC()
		}
		updates["status"] = *req.Status
	}

	if len(updates) == 0 && newSteps == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Workflow{}).Where("id = ?", workflow.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if newSteps != nil {
			if err := tx.Delete(&models.WorkflowStep{}, "workflow_id = ?", workflow.ID).Error; err != nil {
				return err
			}
			if len(newSteps) > 0 {
				if err := tx.Create(&newSteps).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating workflow")
	}

	updated, errResp := h.reload(workflow.ID)
	if errResp != nil {
		return errResp(c)
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "workflow.update", services.ResourceWorkflow, workflow.ID.String(), map[string]interface{}{
		"name": updated.Name,
	}))

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *WorkflowsHandler) reload(id uuid.UUID) (*models.Workflow, func(*fiber.Ctx) error) {
	var workflow models.Workflow
	err := h.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).Preload("CreatedBy").Preload("Document").First(&workflow, "id = ?", id).Error
	if err != nil {
		return nil, func(c *fiber.Ctx) error {
			return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated workflow")
		}
	}
	return &workflow, nil
}

// Advance moves the workflow one step forward along the happy path
// (pending -> in-progress -> completed).
func (h *WorkflowsHandler) Advance(c *fiber.Ctx) error {
	return h.shift(c, "workflow.advance", models.NextWorkflowStatus)
}

// Backward reverses the last forward transition.
func (h *WorkflowsHandler) Backward(c *fiber.Ctx) error {
	return h.shift(c, "workflow.backward", models.PrevWorkflowStatus)
}

func (h *WorkflowsHandler) shift(c *fiber.Ctx, action string, next func(models.WorkflowStatus) models.WorkflowStatus) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workflow, errResp := h.loadAuthorized(c, currentUser)
	if errResp != nil {
		return errResp(c)
	}

	target := next(workflow.Status)
	if target == "" {
		return utils.Error(c, fiber.StatusBadRequest,
			fmt.Sprintf("workflow in status %s cannot move further", workflow.Status))
	}

	updates := map[string]interface{}{"status": target}
	if target == models.WorkflowStatusCompleted {
		if !workflow.StepsTerminal() {
			return utils.Error(c, fiber.StatusBadRequest, "cannot complete workflow with unfinished steps")
		}
		updates["completed_at"] = time.Now().UTC()
	}

	if err := h.DB.Model(&models.Workflow{}).Where("id = ?", workflow.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating workflow")
	}

	updated, errResp := h.reload(workflow.ID)
	if errResp != nil {
		return errResp(c)
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, action, services.ResourceWorkflow, workflow.ID.String(), map[string]interface{}{
		"from": string(workflow.Status),
		"to":   string(target),
	}))

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *WorkflowsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workflow, errResp := h.loadAuthorized(c, currentUser)
	if errResp != nil {
		return errResp(c)
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.WorkflowStep{}, "workflow_id = ?", workflow.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Workflow{}, "id = ?", workflow.ID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting workflow")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "workflow.delete", services.ResourceWorkflow, workflow.ID.String(), map[string]interface{}{
		"name": workflow.Name,
	}))

	return utils.Message(c, fiber.StatusOK, "workflow deleted")
}
