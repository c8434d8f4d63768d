package main

import (
	"github.com/spf13/cobra"

	"github.com/nurpe/supply-settlement/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := db.RunMigrations(a.database); err != nil {
			return err
		}
		a.log.Info().Msg("migrations applied")
		return nil
	},
}
