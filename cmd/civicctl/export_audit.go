package main

import (
	"context"
	"fmt"
	"time"

	"github.com/civicdocs/backend/internal/services"
	"github.com/civicdocs/backend/internal/storage"
	"github.com/spf13/cobra"
)

var exportAuditCmd = &cobra.Command{
	Use:   "export-audit",
	Short: "Ship unexported audit rows to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MinIO.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is not configured")
		}

		store, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("connecting to object storage: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensuring bucket: %w", err)
		}

		audit := services.NewAuditService(db, store, cfg.Audit.QueueSize)
		count, err := audit.ExportOnce(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("exported %d audit rows\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportAuditCmd)
}
