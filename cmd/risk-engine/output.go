package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/miradorstack/mirador-risk/internal/models"
)

var fleetColumns = []string{"equipment_id", "equipment_type", "location", "failure_probability", "risk_score", "risk_category"}

func checkFormat(format string) error {
	switch format {
	case "table", "json", "csv", "":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, json or csv)", format)
	}
}

func writeFleet(w io.Writer, format string, fleet *models.FleetRisk) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fleet)
	case "csv":
		return writeFleetCSV(w, fleet)
	case "table", "":
		return writeFleetTable(w, fleet)
	default:
		return checkFormat(format)
	}
}

func writeFleetCSV(w io.Writer, fleet *models.FleetRisk) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fleetColumns); err != nil {
		return err
	}
	for _, r := range fleet.Records {
		row := []string{
			r.EquipmentID,
			r.EquipmentType,
			r.Location,
			strconv.FormatFloat(r.FailureProbability, 'f', -1, 64),
			strconv.FormatFloat(r.RiskScore, 'f', 1, 64),
			string(r.RiskCategory),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFleetTable(w io.Writer, fleet *models.FleetRisk) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EQUIPMENT\tTYPE\tLOCATION\tPROBABILITY\tSCORE\tCATEGORY")
	for _, r := range fleet.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.1f\t%s\n",
			r.EquipmentID, r.EquipmentType, r.Location, r.FailureProbability, r.RiskScore, r.RiskCategory)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := fleet.CategoryCounts()
	fmt.Fprintf(w, "\n%d assets scored with model %s", len(fleet.Records), fleet.RunID)
	for _, c := range models.RiskCategories {
		fmt.Fprintf(w, "  %s=%d", c, counts[c])
	}
	fmt.Fprintln(w)
	for _, s := range fleet.Skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", s.EquipmentID, s.Reason)
	}
	return nil
}

func writeReport(w io.Writer, report models.EvaluationReport, rejection error) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run id\t%s\n", report.RunID)
	fmt.Fprintf(tw, "backend\t%s\n", report.Backend)
	fmt.Fprintf(tw, "train samples\t%d\n", report.TrainSamples)
	fmt.Fprintf(tw, "test samples\t%d (%d positive)\n", report.TestSamples, report.TestPositives)
	fmt.Fprintf(tw, "precision\t%.3f\n", report.Precision)
	fmt.Fprintf(tw, "recall\t%.3f\n", report.Recall)
	fmt.Fprintf(tw, "f1\t%.3f\n", report.F1)
	fmt.Fprintf(tw, "accuracy\t%.3f\n", report.Accuracy)
	fmt.Fprintf(tw, "roc auc\t%.3f\n", report.ROCAUC)
	fmt.Fprintf(tw, "persisted\t%t\n", report.Persisted)
	if rejection != nil {
		fmt.Fprintf(tw, "rejected\t%v\n", rejection)
	}
	for _, note := range report.Notes {
		fmt.Fprintf(tw, "note\t%s\n", note)
	}
	return tw.Flush()
}
