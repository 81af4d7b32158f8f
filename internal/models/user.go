package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleUser    UserRole = "user"
)

func ValidUserRole(role UserRole) bool {
	switch role {
	case UserRoleAdmin, UserRoleManager, UserRoleUser:
		return true
	default:
		return false
	}
}

// NotificationSettings controls which events a user wants surfaced.
type NotificationSettings struct {
	EmailEnabled    bool `json:"emailEnabled"`
	DocumentUpdates bool `json:"documentUpdates"`
	WorkflowUpdates bool `json:"workflowUpdates"`
	CaseFileUpdates bool `json:"caseFileUpdates"`
	WeeklyDigest    bool `json:"weeklyDigest"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		EmailEnabled:    true,
		DocumentUpdates: true,
		WorkflowUpdates: true,
		CaseFileUpdates: true,
	}
}

type Preferences struct {
	Theme        string `json:"theme"`
	Locale       string `json:"locale"`
	Timezone     string `json:"timezone"`
	DateFormat   string `json:"dateFormat"`
	ItemsPerPage int    `json:"itemsPerPage"`
	AutoSave     bool   `json:"autoSave"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Theme:        "light",
		Locale:       "en",
		Timezone:     "UTC",
		DateFormat:   "YYYY-MM-DD",
		ItemsPerPage: 10,
		AutoSave:     true,
	}
}

type User struct {
	BaseModel
	Email         string               `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash  string               `json:"-" gorm:"type:text;not null"`
	FirstName     string               `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName      string               `json:"lastName" gorm:"type:varchar(100);not null"`
	FullName      string               `json:"fullName" gorm:"-"`
	Role          UserRole             `json:"role" gorm:"type:varchar(20);not null;default:'user';index"`
	Department    string               `json:"department" gorm:"type:varchar(150)"`
	Position      string               `json:"position" gorm:"type:varchar(150)"`
	IsActive      bool                 `json:"isActive" gorm:"not null;default:true"`
	LastLogin     *time.Time           `json:"lastLogin,omitempty"`
	Notifications NotificationSettings `json:"notificationSettings" gorm:"serializer:json"`
	Preferences   Preferences          `json:"preferences" gorm:"serializer:json"`

	Documents []Document `json:"-" gorm:"foreignKey:OwnerID"`
	Workflows []Workflow `json:"-" gorm:"foreignKey:CreatedByID"`
	CaseFiles []CaseFile `json:"-" gorm:"foreignKey:OwnerID"`
}

func (u *User) AfterFind(_ *gorm.DB) error {
	u.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	return nil
}

func (u *User) AfterCreate(_ *gorm.DB) error {
	u.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	return nil
}
