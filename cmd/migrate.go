package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcjefferson/cliniflow2026-sub001/config"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := config.Migrate(rt.db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			rt.log.Info().Msg("schema is up to date")
			return nil
		},
	}
}
