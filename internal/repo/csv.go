package repo

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/miradorstack/mirador-risk/internal/models"
)

// CSVSource reads the two tables from CSV exports with a header row. Unknown columns are ignored.
type CSVSource struct {
	EquipmentPath string
	FailuresPath  string
}

// NewCSVSource constructs a CSVSource.
func NewCSVSource(equipmentPath, failuresPath string) *CSVSource {
	return &CSVSource{EquipmentPath: equipmentPath, FailuresPath: failuresPath}
}

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context) (Tables, error) {
	if err := ctx.Err(); err != nil {
		return Tables{}, err
	}
	equipment, err := os.Open(s.EquipmentPath)
	if err != nil {
		return Tables{}, fmt.Errorf("open equipment csv: %w", err)
	}
	defer equipment.Close()

	failures, err := os.Open(s.FailuresPath)
	if err != nil {
		return Tables{}, fmt.Errorf("open failures csv: %w", err)
	}
	defer failures.Close()

	return ReadCSV(equipment, failures)
}

// ReadCSV parses the equipment master and failure log from readers.
func ReadCSV(equipment, failures io.Reader) (Tables, error) {
	eqRecords, err := readHeaded(equipment, EquipmentTable, "equipment_id", "equipment_type")
	if err != nil {
		return Tables{}, err
	}
	failRecords, err := readHeaded(failures, FailureTable, "equipment_id", "failure_date", "downtime_hours", "repair_cost")
	if err != nil {
		return Tables{}, err
	}

	var tables Tables
	for _, rec := range eqRecords {
		tables.Equipment = append(tables.Equipment, EquipmentRow{
			Row:           rec.row,
			EquipmentID:   rec.get("equipment_id"),
			EquipmentType: rec.get("equipment_type"),
			Location:      rec.get("location"),
		})
	}
	for _, rec := range failRecords {
		hours, err := parseAmount(FailureTable, "downtime_hours", rec.row, rec.get("downtime_hours"))
		if err != nil {
			return Tables{}, err
		}
		cost, err := parseAmount(FailureTable, "repair_cost", rec.row, rec.get("repair_cost"))
		if err != nil {
			return Tables{}, err
		}
		tables.Failures = append(tables.Failures, FailureRow{
			Row:              rec.row,
			DowntimeID:       rec.get("downtime_id"),
			EquipmentID:      rec.get("equipment_id"),
			FailureDate:      rec.get("failure_date"),
			DowntimeHours:    hours,
			RepairCost:       cost,
			FailureType:      rec.get("failure_type"),
			FailureComponent: rec.get("failure_component"),
		})
	}
	return tables, nil
}

type headedRecord struct {
	row    int
	index  map[string]int
	fields []string
}

func (r headedRecord) get(column string) string {
	idx, ok := r.index[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func readHeaded(r io.Reader, table string, required ...string) ([]headedRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &models.DataError{Table: table, Err: errors.New("missing header row")}
		}
		return nil, &models.DataError{Table: table, Err: err}
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, column := range required {
		if _, ok := index[column]; !ok {
			return nil, &models.DataError{Table: table, Column: column, Err: errors.New("required column missing")}
		}
	}

	var records []headedRecord
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &models.DataError{Table: table, Row: row, Err: err}
		}
		records = append(records, headedRecord{row: row, index: index, fields: fields})
	}
	return records, nil
}
