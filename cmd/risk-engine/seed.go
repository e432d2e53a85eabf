package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-risk/internal/eventstore"
	"github.com/miradorstack/mirador-risk/internal/repo"
)

func seedCommand(flags *globalFlags) *cobra.Command {
	var equipmentPath, failuresPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the CSV tables into the sqlite source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if equipmentPath == "" {
				equipmentPath = cfg.Data.CSV.EquipmentPath
			}
			if failuresPath == "" {
				failuresPath = cfg.Data.CSV.FailuresPath
			}

			ctx := cmd.Context()
			tables, err := repo.NewCSVSource(equipmentPath, failuresPath).Load(ctx)
			if err != nil {
				return err
			}
			// Reject bad rows before they reach the database.
			if _, err := eventstore.Normalize(tables); err != nil {
				return err
			}

			db, err := repo.OpenSQLite(ctx, cfg.Data.SQLite.DSN, logger)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := repo.Migrate(ctx, db); err != nil {
				return err
			}
			if err := repo.Seed(ctx, db, tables); err != nil {
				return err
			}
			logger.Info("sqlite source seeded",
				slog.String("dsn", cfg.Data.SQLite.DSN),
				slog.Int("equipment", len(tables.Equipment)),
				slog.Int("failures", len(tables.Failures)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d equipment rows and %d failure rows\n", len(tables.Equipment), len(tables.Failures))
			return nil
		},
	}
	cmd.Flags().StringVar(&equipmentPath, "equipment", "", "Equipment CSV (defaults to data.csv.equipmentPath)")
	cmd.Flags().StringVar(&failuresPath, "failures", "", "Failure log CSV (defaults to data.csv.failuresPath)")
	return cmd
}
