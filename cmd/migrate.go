package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"matchConnectAPI/internal/config"
	"matchConnectAPI/internal/database"
	"matchConnectAPI/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage != config.StoragePostgres {
			return fmt.Errorf("migrate requires STORAGE=%s", config.StoragePostgres)
		}

		pool, err := database.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := database.Migrate(cmd.Context(), pool)
		if err != nil {
			return err
		}

		logger.Info("Migrations complete", "applied", applied)
		return nil
	},
}
