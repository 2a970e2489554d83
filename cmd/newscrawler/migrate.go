package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pgstore "github.com/JakeFAU/realtime-news-crawler/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if e.cfg.Database.DSN == "" {
				return errors.New("database.dsn is required to migrate")
			}
			version, err := pgstore.Migrate(e.cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			e.logger.Info("database schema up to date", zap.Uint("version", version))
			return nil
		},
	}
}
