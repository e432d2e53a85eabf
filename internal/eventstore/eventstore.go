package eventstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/miradorstack/mirador-risk/internal/models"
	"github.com/miradorstack/mirador-risk/internal/repo"
	"github.com/miradorstack/mirador-risk/internal/utils"
)

// EventLog is the typed, date-parsed view of the equipment master and failure log.
// Events are indexed per equipment and sorted by failure date. An EventLog is immutable
// once built and safe for concurrent readers.
type EventLog struct {
	equipment []models.Equipment
	index     map[string]int
	events    map[string][]models.FailureEvent
	total     int
}

// Load reads tables from source and normalizes them.
func Load(ctx context.Context, source repo.Source) (*EventLog, error) {
	if source == nil {
		return nil, errors.New("event source not configured")
	}
	tables, err := source.Load(ctx)
	if err != nil {
		return nil, utils.WrapOp("eventstore.Load", "load tables", err)
	}
	return Normalize(tables)
}

// Normalize validates raw tables and builds an EventLog. Any malformed row fails the
// whole call with a *models.DataError.
func Normalize(tables repo.Tables) (*EventLog, error) {
	log := &EventLog{
		equipment: make([]models.Equipment, 0, len(tables.Equipment)),
		index:     make(map[string]int, len(tables.Equipment)),
		events:    make(map[string][]models.FailureEvent, len(tables.Equipment)),
	}

	for _, row := range tables.Equipment {
		id := strings.TrimSpace(row.EquipmentID)
		if id == "" {
			return nil, dataErr(repo.EquipmentTable, "equipment_id", row.Row, errors.New("missing value"))
		}
		if _, dup := log.index[id]; dup {
			return nil, dataErr(repo.EquipmentTable, "equipment_id", row.Row, fmt.Errorf("duplicate id %q", id))
		}
		eqType := strings.TrimSpace(row.EquipmentType)
		if eqType == "" {
			return nil, dataErr(repo.EquipmentTable, "equipment_type", row.Row, errors.New("missing value"))
		}
		location := strings.TrimSpace(row.Location)
		if location == "" {
			location = models.UnknownLocation
		}
		log.index[id] = len(log.equipment)
		log.equipment = append(log.equipment, models.Equipment{ID: id, Type: eqType, Location: location})
	}

	seen := make(map[string]struct{}, len(tables.Failures))
	for i, row := range tables.Failures {
		id := strings.TrimSpace(row.EquipmentID)
		if id == "" {
			return nil, dataErr(repo.FailureTable, "equipment_id", row.Row, errors.New("missing value"))
		}
		if _, ok := log.index[id]; !ok {
			return nil, dataErr(repo.FailureTable, "equipment_id", row.Row, fmt.Errorf("unknown equipment %q", id))
		}
		at, err := utils.ParseTimestamp(row.FailureDate)
		if err != nil {
			return nil, dataErr(repo.FailureTable, "failure_date", row.Row, err)
		}
		if row.DowntimeHours < 0 {
			return nil, dataErr(repo.FailureTable, "downtime_hours", row.Row, fmt.Errorf("negative value %g", row.DowntimeHours))
		}
		if row.RepairCost < 0 {
			return nil, dataErr(repo.FailureTable, "repair_cost", row.Row, fmt.Errorf("negative value %g", row.RepairCost))
		}

		eventID := strings.TrimSpace(row.DowntimeID)
		if eventID == "" {
			eventID = fmt.Sprintf("DT%05d", i+1)
		}
		if _, dup := seen[eventID]; dup {
			return nil, dataErr(repo.FailureTable, "downtime_id", row.Row, fmt.Errorf("duplicate id %q", eventID))
		}
		seen[eventID] = struct{}{}

		log.events[id] = append(log.events[id], models.FailureEvent{
			ID:            eventID,
			EquipmentID:   id,
			FailureDate:   at,
			DowntimeHours: row.DowntimeHours,
			RepairCost:    row.RepairCost,
			FailureType:   strings.TrimSpace(row.FailureType),
			Component:     strings.TrimSpace(row.FailureComponent),
		})
		log.total++
	}

	for id, events := range log.events {
		slices.SortStableFunc(events, func(a, b models.FailureEvent) int {
			return a.FailureDate.Compare(b.FailureDate)
		})
		log.events[id] = events
	}
	return log, nil
}

func dataErr(table, column string, row int, err error) error {
	return &models.DataError{Table: table, Column: column, Row: row, Err: err}
}

// Equipment returns the fleet in master-table order.
func (l *EventLog) Equipment() []models.Equipment {
	return slices.Clone(l.equipment)
}

// Lookup returns the master row for id.
func (l *EventLog) Lookup(id string) (models.Equipment, bool) {
	idx, ok := l.index[id]
	if !ok {
		return models.Equipment{}, false
	}
	return l.equipment[idx], true
}

// Len returns the number of failure events.
func (l *EventLog) Len() int { return l.total }

// Events returns every event for id in failure-date order. The slice must not be modified.
func (l *EventLog) Events(id string) []models.FailureEvent {
	events := l.events[id]
	return events[:len(events):len(events)]
}

// EventsBefore returns the events for id with FailureDate strictly before at.
// The slice must not be modified.
func (l *EventLog) EventsBefore(id string, at time.Time) []models.FailureEvent {
	events := l.events[id]
	n, _ := slices.BinarySearchFunc(events, at, func(e models.FailureEvent, t time.Time) int {
		// Equal timestamps sort after the target so they are excluded.
		if c := e.FailureDate.Compare(t); c != 0 {
			return c
		}
		return 1
	})
	return events[:n:n]
}

// All returns every event ordered by failure date, then equipment master order.
func (l *EventLog) All() []models.FailureEvent {
	all := make([]models.FailureEvent, 0, l.total)
	for _, eq := range l.equipment {
		all = append(all, l.events[eq.ID]...)
	}
	slices.SortStableFunc(all, func(a, b models.FailureEvent) int {
		return cmp.Compare(a.FailureDate.UnixNano(), b.FailureDate.UnixNano())
	})
	return all
}
