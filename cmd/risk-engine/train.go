package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-risk/internal/riskmodel"
)

func trainCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train, evaluate and persist a new risk model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.scorer.Retrain(cmd.Context())
			if err != nil && !(errors.Is(err, riskmodel.ErrArtifactRejected) && result != nil) {
				return err
			}
			if werr := writeReport(cmd.OutOrStdout(), result.Report, err); werr != nil {
				return werr
			}
			return err
		},
	}
}
