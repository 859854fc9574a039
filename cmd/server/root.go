package main

import (
	"fmt"
	"os"

	"github.com/appverse/authapi/internal/config"
	"github.com/appverse/authapi/internal/database"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "authapi",
	Short: "Passkey authentication and application-token service",
	Long: `authapi runs the WebAuthn registration and login ceremonies and hands
out short-lived application tokens that sibling apps exchange for sessions.

  authapi serve     Run the HTTP API with the challenge sweeper
  authapi migrate   Create or update the database schema
  authapi sweep     Delete expired challenges once and exit`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init()
		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func openDatabase() (*gorm.DB, error) {
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}
