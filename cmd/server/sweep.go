package main

import (
	"github.com/appverse/authapi/internal/services"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired challenges once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		challenges, closeStore, err := buildChallengeStore(cmd.Context(), db)
		if err != nil {
			return err
		}
		defer closeStore()

		_, err = services.NewChallengeSweeper(challenges, cfg.Challenge.SweepInterval).SweepOnce(cmd.Context())
		return err
	},
}
