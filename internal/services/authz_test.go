package services

import (
	"testing"

	"github.com/civicdocs/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupAuthzTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func TestScopeFor(t *testing.T) {
	admin := &models.User{Role: models.UserRoleAdmin}
	manager := &models.User{Role: models.UserRoleManager}
	member := &models.User{Role: models.UserRoleUser}

	cases := []struct {
		name     string
		user     *models.User
		resource Resource
		want     Scope
	}{
		{"admin sees all documents", admin, ResourceDocument, ScopeAll},
		{"manager sees all documents", manager, ResourceDocument, ScopeAll},
		{"user sees own documents", member, ResourceDocument, ScopeOwn},
		{"user sees own workflows", member, ResourceWorkflow, ScopeOwn},
		{"user sees own case files", member, ResourceCaseFile, ScopeOwn},
		{"user sees own audit rows", member, ResourceAuditLog, ScopeOwn},
		{"admin manages users", admin, ResourceUser, ScopeAll},
		{"manager cannot manage users", manager, ResourceUser, ScopeNone},
		{"user cannot manage users", member, ResourceUser, ScopeNone},
		{"unknown resource yields nothing", member, Resource("invoice"), ScopeNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScopeFor(tc.user, tc.resource); got != tc.want {
				t.Fatalf("expected scope %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCanAccessRecord(t *testing.T) {
	ownerID := uuid.New()
	owner := &models.User{Role: models.UserRoleUser}
	owner.ID = ownerID
	stranger := &models.User{Role: models.UserRoleUser}
	stranger.ID = uuid.New()
	manager := &models.User{Role: models.UserRoleManager}
	manager.ID = uuid.New()

	if !CanAccessRecord(owner, ResourceDocument, ownerID) {
		t.Error("owner should access own record")
	}
	if CanAccessRecord(stranger, ResourceDocument, ownerID) {
		t.Error("stranger should not access foreign record")
	}
	if !CanAccessRecord(manager, ResourceDocument, ownerID) {
		t.Error("manager should access any record")
	}
	if CanAccessRecord(manager, ResourceUser, ownerID) {
		t.Error("manager should not manage users")
	}
}

func TestScopeQuery(t *testing.T) {
	db := setupAuthzTestDB(t)

	owner := &models.User{
		Email:        "scope-owner@test.com",
		PasswordHash: "hash",
		FirstName:    "Scope",
		LastName:     "Owner",
		Role:         models.UserRoleUser,
	}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("failed creating owner: %v", err)
	}
	other := &models.User{
		Email:        "scope-other@test.com",
		PasswordHash: "hash",
		FirstName:    "Scope",
		LastName:     "Other",
		Role:         models.UserRoleUser,
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("failed creating other user: %v", err)
	}

	for _, ownerID := range []uuid.UUID{owner.ID, other.ID} {
		document := &models.Document{
			Title:   "scoped",
			Type:    models.DocumentTypeOther,
			Status:  models.DocumentStatusDraft,
			OwnerID: ownerID,
		}
		if err := db.Create(document).Error; err != nil {
			t.Fatalf("failed creating document: %v", err)
		}
	}

	t.Run("own scope filters by owner column", func(t *testing.T) {
		var count int64
		if err := ScopeQuery(db.Model(&models.Document{}), owner, ResourceDocument).Count(&count).Error; err != nil {
			t.Fatalf("scoped count failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected one own document, got %d", count)
		}
	})

	t.Run("all scope returns everything", func(t *testing.T) {
		manager := &models.User{Role: models.UserRoleManager}
		manager.ID = uuid.New()

		var count int64
		if err := ScopeQuery(db.Model(&models.Document{}), manager, ResourceDocument).Count(&count).Error; err != nil {
			t.Fatalf("scoped count failed: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected all documents, got %d", count)
		}
	})

	t.Run("none scope matches nothing", func(t *testing.T) {
		var count int64
		if err := ScopeQuery(db.Model(&models.User{}), owner, ResourceUser).Count(&count).Error; err != nil {
			t.Fatalf("scoped count failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected no visible users, got %d", count)
		}
	})
}
