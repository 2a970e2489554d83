package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/app"
)

func newRunCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the harvest pipeline",
		Long: `Builds the pipeline from configuration, checks that every collaborator is
reachable and then runs harvest cycles until SIGINT or SIGTERM. With --once a
single cycle runs and the command exits after its items were processed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			return runPipeline(cmd, e, once)
		},
	}
	cmd.Flags().Int("workers", 5, "number of pipeline workers")
	cmd.Flags().Duration("interval", 2*time.Minute, "time between harvest cycles")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle, drain and exit")
	return cmd
}

func runPipeline(cmd *cobra.Command, e *env, once bool) error {
	ctx := cmd.Context()
	a, err := app.Build(ctx, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			e.logger.Warn("failed to close application", zap.Error(cerr))
		}
	}()

	if err := a.Preflight(ctx); err != nil {
		return err
	}

	if once {
		stats, err := a.RunOnce(ctx)
		if err != nil {
			return err
		}
		e.logger.Info("single cycle finished",
			zap.String("cycle_id", stats.CycleID),
			zap.Int("enqueued", stats.Enqueued),
			zap.Int("duplicates", stats.Duplicates),
		)
		return nil
	}
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
