package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/civicdocs/backend/internal/models"
	"github.com/civicdocs/backend/pkg/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var flagAdminPassword string

var createAdminCmd = &cobra.Command{
	Use:   "create-admin <email>",
	Short: "Provision an admin account",
	Long: `Create an active admin user with the given email.

The password is taken from --password, or from the ADMIN_PASSWORD
environment variable when the flag is omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&flagAdminPassword, "password", "", "password for the new admin account")
	rootCmd.AddCommand(createAdminCmd)
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	email := strings.ToLower(strings.TrimSpace(args[0]))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", args[0])
	}

	password := flagAdminPassword
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	var existing models.User
	err := db.First(&existing, "email = ?", email).Error
	if err == nil {
		return fmt.Errorf("user %s already exists", email)
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	user := models.User{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     "Admin",
		LastName:      "User",
		Role:          models.UserRoleAdmin,
		IsActive:      true,
		Notifications: models.DefaultNotificationSettings(),
		Preferences:   models.DefaultPreferences(),
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	fmt.Printf("admin %s created\n", user.Email)
	return nil
}
