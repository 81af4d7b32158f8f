package database

import (
	"fmt"

	"github.com/civicdocs/backend/internal/config"
	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the configured database, runs migrations and seeds the
// first admin account when the users table is empty.
func Connect(cfg config.DBConfig, admin config.AdminConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := SeedAdminUser(db, admin.Email, admin.Password); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.Workflow{},
		&models.WorkflowStep{},
		&models.CaseFile{},
		&models.CaseSequence{},
		&models.AuditLog{},
		&models.AuditExportCursor{},
	)
}

// SeedAdminUser provisions the initial admin when no users exist yet.
func SeedAdminUser(db *gorm.DB, email, password string) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     "System",
		LastName:      "Admin",
		Role:          models.UserRoleAdmin,
		IsActive:      true,
		Notifications: models.DefaultNotificationSettings(),
		Preferences:   models.DefaultPreferences(),
	}

	return db.Create(&admin).Error
}
