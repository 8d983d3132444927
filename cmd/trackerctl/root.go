package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/iran-tracker-data/internal/config"
	"github.com/couchcryptid/iran-tracker-data/internal/observability"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the root command.
func Execute() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	return newRootCommand().ExecuteContext(context.Background())
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var logLevel string

	root := &cobra.Command{
		Use:          "trackerctl",
		Short:        "Build and inspect the Iran incident and facility datasets",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			a.cfg = cfg
			a.logger = observability.NewLoggerTo(cmd.ErrOrStderr(), logLevel, "text")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default LOG_LEVEL, then info)")

	root.AddCommand(newBuildCommand(a))
	root.AddCommand(newSummaryCommand(a))
	root.AddCommand(newValidateCommand(a))
	return root
}

// snapshot runs a single refresh against the configured sources. Remote
// fetches update the local snapshots exactly as the server does.
func (a *app) snapshot(ctx context.Context) (*pipeline.Snapshot, error) {
	ref, err := pipeline.LoadReference(a.cfg)
	if err != nil {
		return nil, err
	}

	store := pipeline.NewStore()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	r := pipeline.New(store, pipeline.SourcesFromConfig(a.cfg, a.logger), ref, a.logger, metrics)
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return store.Current(), nil
}
