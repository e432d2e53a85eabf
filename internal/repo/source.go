package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-risk/internal/models"
)

// Table names shared by every source. They match the exported CSV basenames and sqlite tables.
const (
	EquipmentTable = "equipment"
	FailureTable   = "equipment_downtime"
)

// EquipmentRow is one raw row of the equipment master.
type EquipmentRow struct {
	Row           int
	EquipmentID   string
	EquipmentType string
	Location      string
}

// FailureRow is one raw row of the failure-event log. FailureDate stays a string so
// every source shares the same timestamp parsing in eventstore.
type FailureRow struct {
	Row              int
	DowntimeID       string
	EquipmentID      string
	FailureDate      string
	DowntimeHours    float64
	RepairCost       float64
	FailureType      string
	FailureComponent string
}

// Tables carries the two external inputs as read from a source.
type Tables struct {
	Equipment []EquipmentRow
	Failures  []FailureRow
}

// Source loads the equipment master and failure log.
type Source interface {
	Load(ctx context.Context) (Tables, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Tables, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) (Tables, error) {
	return f(ctx)
}

func parseAmount(table, column string, row int, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &models.DataError{Table: table, Column: column, Row: row, Err: fmt.Errorf("missing value")}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.DataError{Table: table, Column: column, Row: row, Err: err}
	}
	return v, nil
}
