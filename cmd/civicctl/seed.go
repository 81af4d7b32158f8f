package main

import (
	"fmt"

	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo users, documents, workflows and case files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(db)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedUser struct {
	email      string
	firstName  string
	lastName   string
	role       models.UserRole
	department string
	position   string
}

var seedUsers = []seedUser{
	{"manager@civicdocs.local", "Dana", "Reyes", models.UserRoleManager, "Records", "Records Manager"},
	{"clerk@civicdocs.local", "Sam", "Okafor", models.UserRoleUser, "Records", "Clerk"},
	{"planner@civicdocs.local", "Ines", "Madsen", models.UserRoleUser, "Planning", "Planner"},
}

func runSeed(db *gorm.DB) error {
	users := make(map[string]models.User, len(seedUsers))

	for _, su := range seedUsers {
		var existing models.User
		err := db.First(&existing, "email = ?", su.email).Error
		if err == nil {
			users[su.email] = existing
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		hash, err := utils.HashPassword("password123")
		if err != nil {
			return err
		}

		user := models.User{
			Email:         su.email,
			PasswordHash:  hash,
			FirstName:     su.firstName,
			LastName:      su.lastName,
			Role:          su.role,
			Department:    su.department,
			Position:      su.position,
			IsActive:      true,
			Notifications: models.DefaultNotificationSettings(),
			Preferences:   models.DefaultPreferences(),
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
		users[su.email] = user
		fmt.Printf("created user %s (%s)\n", user.Email, user.Role)
	}

	clerk := users["clerk@civicdocs.local"]

	var docCount int64
	if err := db.Model(&models.Document{}).Count(&docCount).Error; err != nil {
		return err
	}
	if docCount > 0 {
		fmt.Println("documents already present, skipping record seed")
		return nil
	}

	document := models.Document{
		Title:       "Annual Facilities Report",
		Description: "Condition survey of municipal buildings.",
		Type:        models.DocumentTypeReport,
		Status:      models.DocumentStatusDraft,
		OwnerID:     clerk.ID,
	}
	if err := db.Create(&document).Error; err != nil {
		return err
	}

	workflow := models.Workflow{
		Name:        "Facilities report approval",
		Description: "Review and sign-off for the annual facilities report.",
		DocumentID:  &document.ID,
		Status:      models.WorkflowStatusPending,
		CreatedByID: clerk.ID,
		Steps: []models.WorkflowStep{
			{StepNumber: 1, Type: models.StepTypeReview, Status: models.StepStatusPending},
			{StepNumber: 2, Type: models.StepTypeApproval, Status: models.StepStatusPending},
		},
	}
	if err := db.Create(&workflow).Error; err != nil {
		return err
	}

	sequence := services.NewSequenceService(db)
	caseNumber, err := sequence.NextCaseNumber()
	if err != nil {
		return err
	}

	caseFile := models.CaseFile{
		CaseNumber:  caseNumber,
		Title:       "Sidewalk repair request",
		Description: "Resident request for sidewalk repair on Elm St.",
		Status:      models.CaseFileStatusOpen,
		OwnerID:     clerk.ID,
		Priority:    models.CasePriorityNormal,
		Category:    "public-works",
	}
	if err := db.Create(&caseFile).Error; err != nil {
		return err
	}

	fmt.Printf("seeded 1 document, 1 workflow, case file %s\n", caseFile.CaseNumber)
	return nil
}
