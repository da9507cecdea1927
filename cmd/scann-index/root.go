package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dd0wney/scann-ondevice/pkg/logging"
	"github.com/dd0wney/scann-ondevice/pkg/metrics"
)

var (
	logLevel    string
	metricsFile string

	// Set up by the root command before any subcommand runs
	logger   logging.Logger = logging.NewNopLogger()
	registry                = metrics.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:   "scann-index",
	Short: "Build, inspect and query on-device ScaNN index files",
	Long: `scann-index builds on-device ScaNN index files from JSON-lines embeddings,
inspects and queries them, moves them between local disk and S3, and packs
them into models as associated files.

Logs are written to stderr as JSON; LOG_LEVEL or --log-level sets verbosity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewJSONLogger(cmd.ErrOrStderr(), logging.ParseLevel(logLevel))
		logging.SetDefaultLogger(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsFile == "" {
			return nil
		}
		registry.UpdateSystemMetrics()
		if err := registry.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
