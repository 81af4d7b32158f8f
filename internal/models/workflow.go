package models

import (
	"time"

	"github.com/google/uuid"
)

type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusInProgress WorkflowStatus = "in-progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusCancelled  WorkflowStatus = "cancelled"
)

// workflowTransitions is the allowed status graph. Cancellation is reachable
// from any non-terminal state; completed and cancelled are terminal.
var workflowTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowStatusPending:    {WorkflowStatusInProgress, WorkflowStatusCancelled},
	WorkflowStatusInProgress: {WorkflowStatusCompleted, WorkflowStatusCancelled},
	WorkflowStatusCompleted:  {},
	WorkflowStatusCancelled:  {},
}

func ValidWorkflowStatus(s WorkflowStatus) bool {
	_, ok := workflowTransitions[s]
	return ok
}

func CanTransitionWorkflow(from, to WorkflowStatus) bool {
	if from == to {
		return true
	}
	for _, next := range workflowTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextWorkflowStatus returns the forward step in the happy path, or "" when
// the workflow cannot advance further.
func NextWorkflowStatus(from WorkflowStatus) WorkflowStatus {
	switch from {
	case WorkflowStatusPending:
		return WorkflowStatusInProgress
	case WorkflowStatusInProgress:
		return WorkflowStatusCompleted
	default:
		return ""
	}
}

// PrevWorkflowStatus returns the backward step, or "" when the workflow
// cannot move back.
func PrevWorkflowStatus(from WorkflowStatus) WorkflowStatus {
	switch from {
	case WorkflowStatusInProgress:
		return WorkflowStatusPending
	case WorkflowStatusCompleted:
		return WorkflowStatusInProgress
	default:
		return ""
	}
}

type WorkflowStepType string

const (
	StepTypeReview       WorkflowStepType = "review"
	StepTypeApproval     WorkflowStepType = "approval"
	StepTypeSignature    WorkflowStepType = "signature"
	StepTypeNotification WorkflowStepType = "notification"
)

func ValidWorkflowStepType(t WorkflowStepType) bool {
	switch t {
	case StepTypeReview, StepTypeApproval, StepTypeSignature, StepTypeNotification:
		return true
	default:
		return false
	}
}

type WorkflowStepStatus string

const (
	StepStatusPending    WorkflowStepStatus = "pending"
	StepStatusInProgress WorkflowStepStatus = "in-progress"
	StepStatusCompleted  WorkflowStepStatus = "completed"
	StepStatusRejected   WorkflowStepStatus = "rejected"
)

func ValidWorkflowStepStatus(s WorkflowStepStatus) bool {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusCompleted, StepStatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether the step needs no further action.
func (s WorkflowStepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusRejected
}

type WorkflowStep struct {
	BaseModel
	WorkflowID  uuid.UUID          `json:"workflowID" gorm:"type:uuid;not null;index"`
	StepNumber  int                `json:"stepNumber" gorm:"not null"`
	Type        WorkflowStepType   `json:"type" gorm:"type:varchar(20);not null"`
	AssignedTo  *uuid.UUID         `json:"assignedTo,omitempty" gorm:"type:uuid;index"`
	Status      WorkflowStepStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Comment     string             `json:"comment" gorm:"type:text"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`

	Assignee *User `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo;references:ID"`
}

func (WorkflowStep) TableName() string {
	return "workflow_steps"
}

type Workflow struct {
	BaseModel
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	DocumentID  *uuid.UUID     `json:"documentID,omitempty" gorm:"type:uuid;index"`
	Status      WorkflowStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedByID uuid.UUID      `json:"createdByID" gorm:"type:uuid;not null;index"`
	Steps       []WorkflowStep `json:"steps" gorm:"foreignKey:WorkflowID"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`

	Document  *Document `json:"document,omitempty" gorm:"foreignKey:DocumentID;references:ID"`
	CreatedBy User      `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID;references:ID"`
}

func (Workflow) TableName() string {
	return "workflows"
}

// StepsTerminal reports whether every step has reached a terminal status.
// A workflow with no steps is trivially terminal.
func (w *Workflow) StepsTerminal() bool {
	for _, step := range w.Steps {
		if !step.Status.Terminal() {
			return false
		}
	}
	return true
}
