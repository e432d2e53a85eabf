package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/miradorstack/mirador-risk/internal/models"
)

// EquipmentRecord maps the equipment master table.
type EquipmentRecord struct {
	EquipmentID   string `gorm:"column:equipment_id;primaryKey;size:50"`
	EquipmentName string `gorm:"column:equipment_name;size:100"`
	EquipmentType string `gorm:"column:equipment_type;size:50"`
	Location      string `gorm:"column:location;size:100"`
}

// TableName implements gorm's tabler.
func (EquipmentRecord) TableName() string { return EquipmentTable }

// DowntimeRecord maps the failure-event log. Amounts are pointers so NULLs surface as data errors.
type DowntimeRecord struct {
	DowntimeID       string   `gorm:"column:downtime_id;primaryKey;size:50"`
	EquipmentID      string   `gorm:"column:equipment_id;index;size:50"`
	FailureDate      string   `gorm:"column:failure_date;index"`
	DowntimeHours    *float64 `gorm:"column:downtime_hours"`
	RepairCost       *float64 `gorm:"column:repair_cost"`
	FailureType      string   `gorm:"column:failure_type;size:100"`
	FailureComponent string   `gorm:"column:failure_component;size:100"`
}

// TableName implements gorm's tabler.
func (DowntimeRecord) TableName() string { return FailureTable }

// OpenSQLite opens (creating the parent directory if needed) a pure-Go sqlite database.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*gorm.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := ensureSQLiteDirectory(dsn); err != nil {
		return nil, fmt.Errorf("ensure sqlite directory: %w", err)
	}
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	logger.Debug("sqlite opened", slog.String("dsn", dsn))
	return db, nil
}

func ensureSQLiteDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" || strings.Contains(candidate, "mode=memory") {
		return nil
	}
	candidate = strings.TrimPrefix(candidate, "file:")
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Migrate creates the two tables if they do not exist.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&EquipmentRecord{}, &DowntimeRecord{})
}

// Seed inserts tables into db inside one transaction. Rows without a downtime id get a
// generated DTnnnnn id, matching the generator's numbering.
func Seed(ctx context.Context, db *gorm.DB, tables Tables) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(tables.Equipment) > 0 {
			records := make([]EquipmentRecord, 0, len(tables.Equipment))
			for _, e := range tables.Equipment {
				records = append(records, EquipmentRecord{
					EquipmentID:   e.EquipmentID,
					EquipmentType: e.EquipmentType,
					Location:      e.Location,
				})
			}
			if err := tx.CreateInBatches(records, 200).Error; err != nil {
				return fmt.Errorf("insert equipment: %w", err)
			}
		}
		if len(tables.Failures) > 0 {
			records := make([]DowntimeRecord, 0, len(tables.Failures))
			for i, f := range tables.Failures {
				id := f.DowntimeID
				if id == "" {
					id = fmt.Sprintf("DT%05d", i+1)
				}
				hours, cost := f.DowntimeHours, f.RepairCost
				records = append(records, DowntimeRecord{
					DowntimeID:       id,
					EquipmentID:      f.EquipmentID,
					FailureDate:      f.FailureDate,
					DowntimeHours:    &hours,
					RepairCost:       &cost,
					FailureType:      f.FailureType,
					FailureComponent: f.FailureComponent,
				})
			}
			if err := tx.CreateInBatches(records, 200).Error; err != nil {
				return fmt.Errorf("insert failures: %w", err)
			}
		}
		return nil
	})
}

// SQLSource reads the two tables through gorm.
type SQLSource struct {
	db *gorm.DB
}

// NewSQLSource constructs a SQLSource over an open database.
func NewSQLSource(db *gorm.DB) *SQLSource {
	return &SQLSource{db: db}
}

// Load implements Source.
func (s *SQLSource) Load(ctx context.Context) (Tables, error) {
	if s == nil || s.db == nil {
		return Tables{}, errors.New("sql source not initialised")
	}
	db := s.db.WithContext(ctx)

	var equipment []EquipmentRecord
	if err := db.Order("equipment_id").Find(&equipment).Error; err != nil {
		return Tables{}, fmt.Errorf("query equipment: %w", err)
	}
	var downtime []DowntimeRecord
	if err := db.Order("failure_date").Order("downtime_id").Find(&downtime).Error; err != nil {
		return Tables{}, fmt.Errorf("query failures: %w", err)
	}

	tables := Tables{
		Equipment: make([]EquipmentRow, 0, len(equipment)),
		Failures:  make([]FailureRow, 0, len(downtime)),
	}
	for i, e := range equipment {
		tables.Equipment = append(tables.Equipment, EquipmentRow{
			Row:           i + 1,
			EquipmentID:   e.EquipmentID,
			EquipmentType: e.EquipmentType,
			Location:      e.Location,
		})
	}
	for i, d := range downtime {
		if d.DowntimeHours == nil {
			return Tables{}, &models.DataError{Table: FailureTable, Column: "downtime_hours", Row: i + 1, Err: errors.New("null value")}
		}
		if d.RepairCost == nil {
			return Tables{}, &models.DataError{Table: FailureTable, Column: "repair_cost", Row: i + 1, Err: errors.New("null value")}
		}
		tables.Failures = append(tables.Failures, FailureRow{
			Row:              i + 1,
			DowntimeID:       d.DowntimeID,
			EquipmentID:      d.EquipmentID,
			FailureDate:      d.FailureDate,
			DowntimeHours:    *d.DowntimeHours,
			RepairCost:       *d.RepairCost,
			FailureType:      d.FailureType,
			FailureComponent: d.FailureComponent,
		})
	}
	return tables, nil
}
