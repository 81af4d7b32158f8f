package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminHandler covers user provisioning and system-wide stats. Routes are
// gated to the admin role at registration time.
type AdminHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewAdminHandler(db *gorm.DB, audit *services.AuditService) *AdminHandler {
	return &AdminHandler{DB: db, Audit: audit}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, 10)

	query := h.DB.Model(&models.User{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			searchValue, searchValue, searchValue,
		)
	}
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

type createUserRequest struct {
	Email      string          `json:"email"`
	Password   string          `json:"password"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Role       models.UserRole `json:"role"`
	Department string          `json:"department"`
	Position   string          `json:"position"`
}

func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	if req.FirstName == "" || req.LastName == "" {
		return utils.Error(c, fiber.StatusBadRequest, "firstName and lastName are required")
	}
	if req.Role == "" {
		req.Role = models.UserRoleUser
	}
	if !models.ValidUserRole(req.Role) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid role")
	}

	var existing models.User
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusBadRequest, "email already exists")
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Email:         req.Email,
		PasswordHash:  hash,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          req.Role,
		Department:    strings.TrimSpace(req.Department),
		Position:      strings.TrimSpace(req.Position),
		IsActive:      true,
		Notifications: models.DefaultNotificationSettings(),
		Preferences:   models.DefaultPreferences(),
	}

	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusBadRequest, "email already exists")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "admin.user_create", services.ResourceUser, user.ID.String(), map[string]interface{}{
		"email": user.Email,
		"role":  string(user.Role),
	}))

	return utils.Success(c, fiber.StatusCreated, user)
}

func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type adminUpdateUserRequest struct {
	FirstName  *string          `json:"firstName"`
	LastName   *string          `json:"lastName"`
	Role       *models.UserRole `json:"role"`
	Department *string          `json:"department"`
	Position   *string          `json:"position"`
	IsActive   *bool            `json:"isActive"`
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req adminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		value := strings.TrimSpace(*req.FirstName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "firstName cannot be empty")
		}
		updates["first_name"] = value
	}
	if req.LastName != nil {
		value := strings.TrimSpace(*req.LastName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "lastName cannot be empty")
		}
		updates["last_name"] = value
	}
	if req.Role != nil {
		if !models.ValidUserRole(*req.Role) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
		updates["role"] = *req.Role
	}
	if req.Department != nil {
		updates["department"] = strings.TrimSpace(*req.Department)
	}
	if req.Position != nil {
		updates["position"] = strings.TrimSpace(*req.Position)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	result := h.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated user")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "admin.user_update", services.ResourceUser, user.ID.String(), map[string]interface{}{
		"email": user.Email,
	}))

	return utils.Success(c, fiber.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	// Admins cannot remove themselves.
	if userID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot delete your own account")
	}

	result := h.DB.Delete(&models.User{}, "id = ?", userID)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting user")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "admin.user_delete", services.ResourceUser, userID.String(), nil))

	return utils.Message(c, fiber.StatusOK, "user deleted")
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	var totalUsers, activeUsers, admins, managers int64
	if err := h.DB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing stats")
	}
	h.DB.Model(&models.User{}).Where("is_active = ?", true).Count(&activeUsers)
	h.DB.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&admins)
	h.DB.Model(&models.User{}).Where("role = ?", models.UserRoleManager).Count(&managers)

	var totalDocuments, totalWorkflows, totalCaseFiles, totalAuditLogs int64
	h.DB.Model(&models.Document{}).Count(&totalDocuments)
	h.DB.Model(&models.Workflow{}).Count(&totalWorkflows)
	h.DB.Model(&models.CaseFile{}).Count(&totalCaseFiles)
	h.DB.Model(&models.AuditLog{}).Count(&totalAuditLogs)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"totalUsers":     totalUsers,
		"activeUsers":    activeUsers,
		"admins":         admins,
		"managers":       managers,
		"totalDocuments": totalDocuments,
		"totalWorkflows": totalWorkflows,
		"totalCaseFiles": totalCaseFiles,
		"totalAuditLogs": totalAuditLogs,
	})
}
