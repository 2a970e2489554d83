package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/config"
	"github.com/JakeFAU/realtime-news-crawler/internal/logging"
)

type envKeyType string

const envKey envKeyType = "env"

// env carries what every subcommand needs once the root hook has run.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "newscrawler",
		Short: "Harvests, analyzes and stores breaking Naver news.",
		Long: `newscrawler periodically lists fresh items from the Naver news, entertainment
and sports sections, deduplicates them per cycle and pushes each one through
fetch, analysis and storage on a fixed worker pool. Shutdown drains every
queued item before the process exits.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok {
				// Sync fails on terminals; nothing useful to do about it.
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars use the NEWSCRAWLER_ prefix")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.SetContext(context.Background())
	cmd.SetErr(os.Stderr)
	return cmd
}

// commandFlags maps command flags onto config keys. Flags only win when set
// explicitly; otherwise env and the config file apply.
var commandFlags = map[string]string{
	"workers":  "pipeline.workers",
	"interval": "pipeline.cycle_interval",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range commandFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind %s flag: %w", name, err)
		}
	}
	return nil
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration not initialized")
	}
	return e, nil
}
