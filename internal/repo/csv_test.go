package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-risk/internal/models"
)

const equipmentCSV = `equipment_id,equipment_name,equipment_type,manufacturer,location
EQ0001,Crane 1,Crane,Volvo,Site_A
EQ0002,Loader 2,Loader,JCB,
`

const failuresCSV = `downtime_id,equipment_id,failure_date,repair_start_date,downtime_hours,failure_type,failure_component,repair_cost
DT00001,EQ0001,2024-01-10 00:00:00,2024-01-10 03:00:00,5.5,Mechanical,Engine,1000
DT00002,EQ0001,2024-02-09,2024-02-09 04:00:00,8,Hydraulic,Boom,2000.25
`

func TestReadCSVIgnoresExtraColumns(t *testing.T) {
	tables, err := ReadCSV(strings.NewReader(equipmentCSV), strings.NewReader(failuresCSV))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(tables.Equipment) != 2 {
		t.Fatalf("expected 2 equipment rows, got %d", len(tables.Equipment))
	}
	if tables.Equipment[1].Location != "" {
		t.Fatalf("expected empty location to be passed through, got %q", tables.Equipment[1].Location)
	}
	if len(tables.Failures) != 2 {
		t.Fatalf("expected 2 failure rows, got %d", len(tables.Failures))
	}
	f := tables.Failures[1]
	if f.DowntimeHours != 8 || f.RepairCost != 2000.25 || f.FailureComponent != "Boom" || f.Row != 2 {
		t.Fatalf("unexpected failure row: %+v", f)
	}
}

func TestReadCSVMissingRequiredColumn(t *testing.T) {
	noDate := "equipment_id,downtime_hours,repair_cost\nEQ0001,1,1\n"
	_, err := ReadCSV(strings.NewReader(equipmentCSV), strings.NewReader(noDate))
	var dataErr *models.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if dataErr.Column != "failure_date" {
		t.Fatalf("expected failure_date column, got %q", dataErr.Column)
	}
}

func TestReadCSVBadAmount(t *testing.T) {
	bad := "equipment_id,failure_date,downtime_hours,repair_cost\nEQ0001,2024-01-01,abc,1\n"
	_, err := ReadCSV(strings.NewReader(equipmentCSV), strings.NewReader(bad))
	if !errors.Is(err, models.ErrData) {
		t.Fatalf("expected data error, got %v", err)
	}
}

func TestCSVSourceLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	eqPath := filepath.Join(dir, "equipment.csv")
	failPath := filepath.Join(dir, "equipment_downtime.csv")
	if err := os.WriteFile(eqPath, []byte(equipmentCSV), 0o600); err != nil {
		t.Fatalf("write equipment: %v", err)
	}
	if err := os.WriteFile(failPath, []byte(failuresCSV), 0o600); err != nil {
		t.Fatalf("write failures: %v", err)
	}

	tables, err := NewCSVSource(eqPath, failPath).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tables.Equipment) != 2 || len(tables.Failures) != 2 {
		t.Fatalf("unexpected table sizes: %d/%d", len(tables.Equipment), len(tables.Failures))
	}

	if _, err := NewCSVSource(filepath.Join(dir, "nope.csv"), failPath).Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
