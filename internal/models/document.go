package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	DocumentTypeContract DocumentType = "contract"
	DocumentTypeReport   DocumentType = "report"
	DocumentTypeMemo     DocumentType = "memo"
	DocumentTypePolicy   DocumentType = "policy"
	DocumentTypeForm     DocumentType = "form"
	DocumentTypeOther    DocumentType = "other"
)

func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeContract, DocumentTypeReport, DocumentTypeMemo,
		DocumentTypePolicy, DocumentTypeForm, DocumentTypeOther:
		return true
	default:
		return false
	}
}

type DocumentStatus string

const (
	DocumentStatusDraft    DocumentStatus = "draft"
	DocumentStatusReview   DocumentStatus = "review"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusArchived DocumentStatus = "archived"
)

// documentTransitions is the allowed status graph. A document goes out for
// review from draft, can be sent back or approved, and approved documents
// can only be archived.
var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentStatusDraft:    {DocumentStatusReview},
	DocumentStatusReview:   {DocumentStatusDraft, DocumentStatusApproved},
	DocumentStatusApproved: {DocumentStatusArchived},
	DocumentStatusArchived: {},
}

func ValidDocumentStatus(s DocumentStatus) bool {
	_, ok := documentTransitions[s]
	return ok
}

// CanTransitionDocument reports whether a document may move from one status
// to another. Setting the same status is a no-op and always allowed.
func CanTransitionDocument(from, to DocumentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range documentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Document struct {
	BaseModel
	Title       string         `json:"title" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Type        DocumentType   `json:"type" gorm:"type:varchar(20);not null;default:'other';index"`
	Status      DocumentStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	OwnerID     uuid.UUID      `json:"ownerID" gorm:"type:uuid;not null;index"`
	FilePath    *string        `json:"filePath,omitempty" gorm:"type:text"`
	FileSize    *int64         `json:"fileSize,omitempty"`
	FileType    *string        `json:"fileType,omitempty" gorm:"type:varchar(100)"`
	ArchivedAt  *time.Time     `json:"archivedAt,omitempty"`

	Owner     User       `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Workflows []Workflow `json:"-" gorm:"foreignKey:DocumentID"`
}

func (Document) TableName() string {
	return "documents"
}
