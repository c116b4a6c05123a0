// Package cmd defines the CLI commands for the igbot executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/config"
	"github.com/igwatch/igbot/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "igbot",
		Short: "Scrapes, filters, and posts federal Inspector General reports",
		Long: `igbot ingests new Inspector General reports from Oversight.gov,
filters them for newsworthiness with an LLM, drafts short summaries, and
posts the most newsworthy ones to Bluesky.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (environment variables with the IGBOT_ prefix override it)")

	cmd.AddCommand(newRunCmd(), newStatsCmd(), newInitDBCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger commands share.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
