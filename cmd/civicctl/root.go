package main

import (
	"fmt"
	"os"

	"github.com/civicdocs/backend/internal/config"
	"github.com/civicdocs/backend/internal/database"
	"github.com/civicdocs/backend/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg *config.Config
	db  *gorm.DB
)

var rootCmd = &cobra.Command{
	Use:   "civicctl",
	Short: "CivicDocs operations CLI",
	Long: `civicctl runs one-shot operational tasks against the CivicDocs
database: seeding demo data, provisioning admins, and exporting the
audit trail.

Examples:
  civicctl seed                      Seed demo users and records
  civicctl create-admin you@city.gov Provision an admin account
  civicctl export-audit              Ship unexported audit rows to MinIO`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init()
		cfg = config.Load()

		var err error
		db, err = database.Connect(cfg.DB, cfg.Admin)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
