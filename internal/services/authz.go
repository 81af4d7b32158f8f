package services

import (
	"github.com/civicdocs/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Resource string

const (
	ResourceDocument Resource = "document"
	ResourceWorkflow Resource = "workflow"
	ResourceCaseFile Resource = "case_file"
	ResourceAuditLog Resource = "audit_log"
	ResourceUser     Resource = "user"
)

// Scope describes how much of a collection a role may see.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeAll
)

type resourcePolicy struct {
	// OwnerColumn is the column compared against the caller's ID when the
	// role resolves to ScopeOwn.
	OwnerColumn string
	Roles       map[models.UserRole]Scope
}

// policies is the single authorization table: resource x role -> scope.
// Handlers consult it instead of re-implementing per-route role checks.
var policies = map[Resource]resourcePolicy{
	ResourceDocument: {
		OwnerColumn: "owner_id",
		Roles: map[models.UserRole]Scope{
			models.UserRoleAdmin:   ScopeAll,
			models.UserRoleManager: ScopeAll,
			models.UserRoleUser:    ScopeOwn,
		},
	},
	ResourceWorkflow: {
		OwnerColumn: "created_by_id",
		Roles: map[models.UserRole]Scope{
			models.UserRoleAdmin:   ScopeAll,
			models.UserRoleManager: ScopeAll,
			models.UserRoleUser:    ScopeOwn,
		},
	},
	ResourceCaseFile: {
		OwnerColumn: "owner_id",
		Roles: map[models.UserRole]Scope{
			models.UserRoleAdmin:   ScopeAll,
			models.UserRoleManager: ScopeAll,
			models.UserRoleUser:    ScopeOwn,
		},
	},
	ResourceAuditLog: {
		OwnerColumn: "user_id",
		Roles: map[models.UserRole]Scope{
			models.UserRoleAdmin:   ScopeAll,
			models.UserRoleManager: ScopeAll,
			models.UserRoleUser:    ScopeOwn,
		},
	},
	ResourceUser: {
		OwnerColumn: "id",
		Roles: map[models.UserRole]Scope{
			models.UserRoleAdmin: ScopeAll,
		},
	},
}

// ScopeFor resolves the caller's scope for a resource.
func ScopeFor(user *models.User, resource Resource) Scope {
	policy, ok := policies[resource]
	if !ok {
		return ScopeNone
	}
	return policy.Roles[user.Role]
}

// ScopeQuery applies the caller's scope to a list query. ScopeNone yields a
// query that matches nothing.
func ScopeQuery(query *gorm.DB, user *models.User, resource Resource) *gorm.DB {
	policy, ok := policies[resource]
	if !ok {
		return query.Where("1 = 0")
	}

	switch policy.Roles[user.Role] {
	case ScopeAll:
		return query
	case ScopeOwn:
		return query.Where(policy.OwnerColumn+" = ?", user.ID)
	default:
		return query.Where("1 = 0")
	}
}

// CanAccessRecord reports whether the caller may act on a single record
// owned by ownerID.
func CanAccessRecord(user *models.User, resource Resource, ownerID uuid.UUID) bool {
	switch ScopeFor(user, resource) {
	case ScopeAll:
		return true
	case ScopeOwn:
		return ownerID == user.ID
	default:
		return false
	}
}
