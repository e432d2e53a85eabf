package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func scoreCommand(flags *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank the fleet by predicted failure risk",
		Long:  `Scores every asset in the equipment master with the stored model, training one first when no model exists.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, logger, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			fleet, err := a.scorer.ScoreFleet(cmd.Context())
			if err != nil {
				return err
			}
			logger.Debug("fleet scored", slog.Int("assets", len(fleet.Records)))
			return writeFleet(cmd.OutOrStdout(), format, fleet)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv")
	return cmd
}
