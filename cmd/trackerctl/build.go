package main

import (
	"errors"
	"fmt"

	kafkaadapter "github.com/couchcryptid/iran-tracker-data/internal/adapter/kafka"
	"github.com/couchcryptid/iran-tracker-data/internal/export"
	"github.com/spf13/cobra"
)

var errPublishDisabled = errors.New("--publish requires KAFKA_BROKERS")

func newBuildCommand(a *app) *cobra.Command {
	var (
		outDir  string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch the datasets and write the site artifacts",
		Long: `Fetch every dataset (remote first, local snapshot otherwise), run the
pipeline once and write the JSON, CSV and JSON-LD artifacts. Only files whose
content changed are rewritten. Fails when a required dataset is unavailable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outDir == "" {
				outDir = a.cfg.OutputDir
			}
			if publish && !a.cfg.PublishEnabled() {
				return errPublishDisabled
			}

			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}

			written, err := export.WriteAll(outDir, snap)
			if err != nil {
				return fmt.Errorf("write artifacts: %w", err)
			}
			a.logger.Info("artifacts written", "dir", outDir, "changed", len(written))
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}

			if !publish {
				return nil
			}
			w := kafkaadapter.NewWriter(a.cfg, a.logger)
			defer w.Close() //nolint:errcheck // one-shot
			return w.Publish(cmd.Context(), snap)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "artifact directory (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish the snapshot to Kafka")
	return cmd
}
