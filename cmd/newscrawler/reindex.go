package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/app"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuilds the search index from stored articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if !e.cfg.Search.Enabled {
				return errors.New("search.enabled is false, nothing to reindex")
			}
			a, err := app.Build(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					e.logger.Warn("failed to close application", zap.Error(cerr))
				}
			}()
			n, err := a.Reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			e.logger.Info("reindex finished", zap.Int("documents", n))
			return nil
		},
	}
}
