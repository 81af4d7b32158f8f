package handlers

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/civicdocs/backend/internal/middleware"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/logger"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewAuthHandler(db *gorm.DB, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{DB: db, Audit: audit}
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department"`
	Position   string `json:"position"`
	// Role is accepted but ignored: self-registration always yields "user".
	Role string `json:"role"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
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

	var existing models.User
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusBadRequest, "email already exists")
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Email:         req.Email,
		PasswordHash:  passwordHash,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          models.UserRoleUser,
		Department:    strings.TrimSpace(req.Department),
		Position:      strings.TrimSpace(req.Position),
		IsActive:      true,
		Notifications: models.DefaultNotificationSettings(),
		Preferences:   models.DefaultPreferences(),
	}

	if err := h.DB.Create(&user).Error; err != nil {
		// The existence check above races with concurrent registrations;
		// the unique index on email is the authority.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusBadRequest, "email already exists")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
	})

	h.Audit.LogAsync(auditEntry(c, &user, "user.register", services.ResourceUser, user.ID.String(), map[string]interface{}{
		"email": user.Email,
	}))

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}
	refreshToken, err := utils.GenerateRefreshToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating refresh token")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"token":        token,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !user.IsActive {
		logger.Warn("login_failed_inactive", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	now := time.Now().UTC()
	if err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("last_login", now).Error; err != nil {
		logger.Error("login_last_login_update_failed", err, map[string]interface{}{
			"user_id": user.ID.String(),
		})
	}
	user.LastLogin = &now

	logger.Info("user_login", map[string]interface{}{
		"user_id": user.ID.String(),
		"ip":      c.IP(),
	})

	h.Audit.LogAsync(auditEntry(c, &user, "user.login", services.ResourceUser, user.ID.String(), map[string]interface{}{
		"email": user.Email,
	}))

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}
	refreshToken, err := utils.GenerateRefreshToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating refresh token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":        token,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

// Logout only records the event; tokens are stateless and expire on their own.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	h.Audit.LogAsync(auditEntry(c, user, "user.logout", services.ResourceUser, user.ID.String(), nil))

	return utils.Message(c, fiber.StatusOK, "logged out")
}

func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type updateProfileRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Department *string `json:"department"`
	Position   *string `json:"position"`
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
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
	if req.Department != nil {
		updates["department"] = strings.TrimSpace(*req.Department)
	}
	if req.Position != nil {
		updates["position"] = strings.TrimSpace(*req.Position)
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated profile")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "user.profile_update", services.ResourceUser, currentUser.ID.String(), nil))

	return utils.Success(c, fiber.StatusOK, updated)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.NewPassword) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "newPassword must be at least 8 characters")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	if !utils.CheckPassword(req.OldPassword, user.PasswordHash) {
		return utils.Error(c, fiber.StatusBadRequest, "oldPassword is incorrect")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating password")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "user.password_change", services.ResourceUser, currentUser.ID.String(), nil))

	return utils.Message(c, fiber.StatusOK, "password updated")
}

func (h *AuthHandler) Notifications(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user.Notifications)
}

func (h *AuthHandler) UpdateNotifications(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var settings models.NotificationSettings
	if err := c.BodyParser(&settings); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Update("notifications", settings).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating notification settings")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "user.notifications_update", services.ResourceUser, currentUser.ID.String(), nil))

	return utils.Success(c, fiber.StatusOK, settings)
}

func (h *AuthHandler) Preferences(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user.Preferences)
}

func (h *AuthHandler) UpdatePreferences(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var prefs models.Preferences
	if err := c.BodyParser(&prefs); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if prefs.ItemsPerPage < 1 || prefs.ItemsPerPage > 100 {
		return utils.Error(c, fiber.StatusBadRequest, "itemsPerPage must be between 1 and 100")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Update("preferences", prefs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating preferences")
	}

	h.Audit.LogAsync(auditEntry(c, currentUser, "user.preferences_update", services.ResourceUser, currentUser.ID.String(), nil))

	return utils.Success(c, fiber.StatusOK, prefs)
}
