package handlers

import (
	"strings"

	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// auditEntry fills the request-derived fields of an audit entry so handlers
// only name the action and resource.
func auditEntry(c *fiber.Ctx, user *models.User, action string, resourceType services.Resource, resourceID string, details map[string]interface{}) services.AuditEntry {
	var userID *uuid.UUID
	if user != nil {
		id := user.ID
		userID = &id
	}
	return services.AuditEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: string(resourceType),
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
		Status:       models.AuditStatusSuccess,
	}
}
