package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-risk/internal/config"
	"github.com/miradorstack/mirador-risk/internal/utils"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// rootCommand assembles the risk-engine CLI.
func rootCommand() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "risk-engine",
		Short:         "Equipment failure risk engine",
		Long:          `Trains a failure-prediction model from the equipment master and failure log, and ranks the fleet by predicted failure risk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to configuration file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level")

	rootCmd.AddCommand(
		serveCommand(flags),
		scoreCommand(flags),
		trainCommand(flags),
		seedCommand(flags),
	)
	return rootCmd
}

// loadConfig reads configuration and builds a stderr logger so stdout stays free for results.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	logger := utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
