package models

import (
	"time"

	"github.com/google/uuid"
)

type CaseFileStatus string

const (
	CaseFileStatusOpen       CaseFileStatus = "open"
	CaseFileStatusInProgress CaseFileStatus = "in-progress"
	CaseFileStatusClosed     CaseFileStatus = "closed"
	CaseFileStatusArchived   CaseFileStatus = "archived"
)

func ValidCaseFileStatus(s CaseFileStatus) bool {
	switch s {
	case CaseFileStatusOpen, CaseFileStatusInProgress, CaseFileStatusClosed, CaseFileStatusArchived:
		return true
	default:
		return false
	}
}

type CasePriority string

const (
	CasePriorityLow    CasePriority = "low"
	CasePriorityNormal CasePriority = "normal"
	CasePriorityHigh   CasePriority = "high"
	CasePriorityUrgent CasePriority = "urgent"
)

func ValidCasePriority(p CasePriority) bool {
	switch p {
	case CasePriorityLow, CasePriorityNormal, CasePriorityHigh, CasePriorityUrgent:
		return true
	default:
		return false
	}
}

type CaseFile struct {
	BaseModel
	CaseNumber  string         `json:"caseNumber" gorm:"type:varchar(20);uniqueIndex;not null"`
	Title       string         `json:"title" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Status      CaseFileStatus `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	OwnerID     uuid.UUID      `json:"ownerID" gorm:"type:uuid;not null;index"`
	Priority    CasePriority   `json:"priority" gorm:"type:varchar(10);not null;default:'normal';index"`
	Category    string         `json:"category" gorm:"type:varchar(150)"`
	ClosedAt    *time.Time     `json:"closedAt,omitempty"`

	Owner User `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}

func (CaseFile) TableName() string {
	return "case_files"
}

// CaseSequence backs atomic case-number allocation, one counter row per year.
type CaseSequence struct {
	Year    int   `gorm:"primaryKey"`
	Counter int64 `gorm:"not null;default:0"`
}

func (CaseSequence) TableName() string {
	return "case_sequences"
}
