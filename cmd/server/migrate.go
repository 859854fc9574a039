package main

import (
	"fmt"

	"github.com/appverse/authapi/internal/database"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("database_migrated", map[string]interface{}{
			"driver": cfg.DB.Driver,
		})
		return nil
	},
}
