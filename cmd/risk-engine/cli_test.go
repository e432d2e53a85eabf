package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// writeFleetCSVs writes a twelve-asset fleet where even-numbered assets fail every 45 days.
func writeFleetCSVs(t *testing.T, dir string) (string, string) {
	t.Helper()
	var equipment, failures strings.Builder
	equipment.WriteString("equipment_id,equipment_type,location\n")
	failures.WriteString("downtime_id,equipment_id,failure_date,downtime_hours,repair_cost\n")
	start := time.Now().UTC().AddDate(-2, 0, 0)
	n := 0
	for i := 1; i <= 12; i++ {
		id := fmt.Sprintf("EQ%04d", i)
		fmt.Fprintf(&equipment, "%s,Excavator,Site_A\n", id)
		gap := 300
		if i%2 == 0 {
			gap = 45
		}
		for d := gap; d < 700; d += gap {
			n++
			fmt.Fprintf(&failures, "DT%05d,%s,%s,%d,%d\n", n, id, start.AddDate(0, 0, d+i).Format("2006-01-02 15:04:05"), 4+i, 500*i)
		}
	}
	eqPath := filepath.Join(dir, "equipment.csv")
	failPath := filepath.Join(dir, "equipment_downtime.csv")
	if err := os.WriteFile(eqPath, []byte(equipment.String()), 0o600); err != nil {
		t.Fatalf("write equipment: %v", err)
	}
	if err := os.WriteFile(failPath, []byte(failures.String()), 0o600); err != nil {
		t.Fatalf("write failures: %v", err)
	}
	return eqPath, failPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestTrainThenScoreCSV(t *testing.T) {
	t.Setenv("MIRADOR_RISK_CONFIG", "")
	dir := t.TempDir()
	eqPath, failPath := writeFleetCSVs(t, dir)
	artifact := filepath.Join(dir, "models", "model.json")
	cfgPath := filepath.Join(dir, "risk.yaml")
	cfg := fmt.Sprintf(`
data:
  source: csv
  csv:
    equipmentPath: %s
    failuresPath: %s
model:
  artifactPath: %s
  backend: forest
  forest:
    trees: 10
    maxDepth: 6
    minSamplesLeaf: 1
cache:
  backend: none
`, eqPath, failPath, artifact)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCLI(t, "--config", cfgPath, "train")
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !hasReportLine(out, "persisted", "true") {
		t.Fatalf("expected persisted report, got:\n%s", out)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("expected artifact on disk: %v", err)
	}

	out, err = runCLI(t, "--config", cfgPath, "score", "--format", "csv")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv output: %v", err)
	}
	if len(rows) != 13 {
		t.Fatalf("expected header plus 12 rows, got %d", len(rows))
	}
	prev := 101.0
	for _, row := range rows[1:] {
		score, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			t.Fatalf("parse score %q: %v", row[4], err)
		}
		if score > prev {
			t.Fatalf("scores not sorted descending: %v after %v", score, prev)
		}
		prev = score
	}
}

func hasReportLine(out, key, value string) bool {
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) == 2 && fields[0] == key && fields[1] == value {
			return true
		}
	}
	return false
}

func TestScoreRejectsUnknownFormat(t *testing.T) {
	t.Setenv("MIRADOR_RISK_CONFIG", "")
	t.Setenv("MIRADOR_RISK_ARTIFACT_PATH", filepath.Join(t.TempDir(), "model.json"))

	_, err := runCLI(t, "score", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}
