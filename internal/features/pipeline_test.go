package features

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/mirador-risk/internal/eventstore"
	"github.com/miradorstack/mirador-risk/internal/models"
	"github.com/miradorstack/mirador-risk/internal/repo"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dayAt(n int) time.Time { return epoch.Add(time.Duration(n) * day) }

type failureFixture struct {
	equipment string
	day       int
	hours     float64
	cost      float64
}

func buildLog(t *testing.T, equipment []string, failures ...failureFixture) *eventstore.EventLog {
	t.Helper()
	var tables repo.Tables
	for i, id := range equipment {
		tables.Equipment = append(tables.Equipment, repo.EquipmentRow{Row: i + 1, EquipmentID: id, EquipmentType: "Excavator", Location: "Site_A"})
	}
	for i, f := range failures {
		tables.Failures = append(tables.Failures, repo.FailureRow{
			Row:           i + 1,
			DowntimeID:    fmt.Sprintf("DT%05d", i+1),
			EquipmentID:   f.equipment,
			FailureDate:   dayAt(f.day).Format("2006-01-02 15:04:05"),
			DowntimeHours: f.hours,
			RepairCost:    f.cost,
		})
	}
	log, err := eventstore.Normalize(tables)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return log
}

func mustFeature(t *testing.T, v models.FeatureVector, name string) float64 {
	t.Helper()
	value, ok := v.Get(name)
	if !ok {
		t.Fatalf("column %s missing from %v", name, v.Columns)
	}
	return value
}

func TestComputeFeaturesScenario(t *testing.T) {
	log := buildLog(t, []string{"EQ1"},
		failureFixture{"EQ1", 10, 5, 1000},
		failureFixture{"EQ1", 40, 8, 2000},
		failureFixture{"EQ1", 100, 20, 9000},
	)
	p := NewPipeline(nil, log, DefaultOptions())

	v, err := p.ComputeFeatures("EQ1", dayAt(101))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	checks := map[string]float64{
		ColTotalFailures:    3,
		ColDaysSinceLast:    1,
		ColAvgDowntimeHours: 11,
		ColTotalRepairCost:  12000,
		ColFailuresRecent:   2,
		ColMTBFDays:         45,
	}
	for name, want := range checks {
		if got := mustFeature(t, v, name); got != want {
			t.Fatalf("%s: expected %v, got %v", name, want, got)
		}
	}
	if !slices.Equal(v.Columns, Columns()) {
		t.Fatalf("unexpected column order %v", v.Columns)
	}
}

func TestComputeFeaturesNoLookAhead(t *testing.T) {
	log := buildLog(t, []string{"EQ1"}, failureFixture{"EQ1", 100, 4, 500})
	p := NewPipeline(nil, log, DefaultOptions())

	before, err := p.ComputeFeatures("EQ1", dayAt(99))
	if err != nil {
		t.Fatalf("compute day 99: %v", err)
	}
	if got := mustFeature(t, before, ColTotalFailures); got != 0 {
		t.Fatalf("expected 0 failures at day 99, got %v", got)
	}
	after, err := p.ComputeFeatures("EQ1", dayAt(101))
	if err != nil {
		t.Fatalf("compute day 101: %v", err)
	}
	if got := mustFeature(t, after, ColTotalFailures); got != 1 {
		t.Fatalf("expected 1 failure at day 101, got %v", got)
	}

	// Events at or after the snapshot instant must not move the vector.
	later := buildLog(t, []string{"EQ1"},
		failureFixture{"EQ1", 100, 4, 500},
		failureFixture{"EQ1", 99, 50, 50000},
		failureFixture{"EQ1", 150, 1, 1},
	)
	again, err := NewPipeline(nil, later, DefaultOptions()).ComputeFeatures("EQ1", dayAt(99))
	if err != nil {
		t.Fatalf("compute with future events: %v", err)
	}
	if !slices.Equal(before.Values, again.Values) {
		t.Fatalf("future events leaked into snapshot: %v vs %v", before.Values, again.Values)
	}
}

func TestComputeFeaturesEmptyHistoryUsesSentinels(t *testing.T) {
	log := buildLog(t, []string{"EQ7"})
	p := NewPipeline(nil, log, DefaultOptions())

	v, err := p.ComputeFeatures("EQ7", dayAt(200))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	checks := map[string]float64{
		ColTotalFailures:    0,
		ColAvgDowntimeHours: 0,
		ColTotalRepairCost:  0,
		ColFailuresRecent:   0,
		ColDaysSinceLast:    730,
		ColMTBFDays:         730,
	}
	for name, want := range checks {
		if got := mustFeature(t, v, name); got != want {
			t.Fatalf("%s: expected %v, got %v", name, want, got)
		}
	}
	oil := mustFeature(t, v, ColOilQuality)
	if oil < 0 || oil > 100 {
		t.Fatalf("oil quality out of range: %v", oil)
	}
}

func TestComputeFeaturesMTBFNeedsTwoIntervals(t *testing.T) {
	log := buildLog(t, []string{"EQ1"},
		failureFixture{"EQ1", 10, 1, 1},
		failureFixture{"EQ1", 30, 1, 1},
	)
	p := NewPipeline(nil, log, DefaultOptions())
	v, err := p.ComputeFeatures("EQ1", dayAt(60))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := mustFeature(t, v, ColMTBFDays); got != 730 {
		t.Fatalf("expected sentinel mtbf with one interval, got %v", got)
	}

	if _, err := meanTimeBetweenFailures(nil, 2); !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestComputeFeaturesIsDeterministic(t *testing.T) {
	log := buildLog(t, []string{"EQ1", "PUMP-A"}, failureFixture{"EQ1", 5, 2, 10})
	p := NewPipeline(nil, log, DefaultOptions())
	at := dayAt(50).Add(13 * time.Hour)

	for _, id := range []string{"EQ1", "PUMP-A"} {
		first, err := p.ComputeFeatures(id, at)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		second, err := p.ComputeFeatures(id, at.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if !slices.Equal(first.Values, second.Values) {
			t.Fatalf("%s: expected identical vectors within a day, got %v vs %v", id, first.Values, second.Values)
		}
	}
}

func TestComputeFeaturesUnknownEquipment(t *testing.T) {
	p := NewPipeline(nil, buildLog(t, []string{"EQ1"}), DefaultOptions())
	if _, err := p.ComputeFeatures("EQ404", dayAt(1)); !errors.Is(err, ErrUnknownEquipment) {
		t.Fatalf("expected ErrUnknownEquipment, got %v", err)
	}
}

func TestRiskFactorModulation(t *testing.T) {
	cases := []struct {
		days int
		want float64
	}{
		{0, 0.5}, {29, 0.5}, {30, 1.0}, {100, 1.0}, {101, 1.5}, {730, 1.5},
	}
	for _, tc := range cases {
		if got := riskFactor(tc.days); got != tc.want {
			t.Fatalf("riskFactor(%d): expected %v, got %v", tc.days, tc.want, got)
		}
	}
	if equipmentDigit("EQ0007") != 7 {
		t.Fatalf("expected trailing digit to seed signals")
	}
	if d := equipmentDigit("PUMP-A"); d > 9 {
		t.Fatalf("expected hashed digit in [0,9], got %d", d)
	}
}

func TestComputeFleetMasterOrder(t *testing.T) {
	log := buildLog(t, []string{"EQ3", "EQ1", "EQ2"}, failureFixture{"EQ1", 1, 1, 1})
	p := NewPipeline(nil, log, DefaultOptions())
	snaps, err := p.ComputeFleet(context.Background(), dayAt(10))
	if err != nil {
		t.Fatalf("fleet: %v", err)
	}
	if len(snaps) != 3 || snaps[0].EquipmentID != "EQ3" || snaps[2].EquipmentID != "EQ2" {
		t.Fatalf("unexpected fleet order: %+v", snaps)
	}
	if snaps[0].Label != nil {
		t.Fatalf("inference snapshots must be unlabelled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.ComputeFleet(ctx, dayAt(10)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestBuildTrainingSetLabels(t *testing.T) {
	log := buildLog(t, []string{"EQ1", "EQ2"},
		failureFixture{"EQ1", 10, 5, 1000},
		failureFixture{"EQ1", 40, 8, 2000},
		failureFixture{"EQ2", 70, 3, 300},
	)
	p := NewPipeline(nil, log, DefaultOptions())
	now := dayAt(400)

	set, err := p.BuildTrainingSet(context.Background(), now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	positives, negatives := set.Counts()
	if positives != 3 || negatives != 2 {
		t.Fatalf("expected 3 positives and 2 negatives, got %d/%d", positives, negatives)
	}
	if set.LabelColumn != "is_failure_next_30_days" {
		t.Fatalf("unexpected label column %q", set.LabelColumn)
	}

	byID := map[string]models.FailureEvent{}
	for _, e := range log.All() {
		byID[e.ID] = e
	}
	for _, s := range set.Snapshots {
		if *s.Label == 1 {
			event, ok := byID[s.SourceEventID]
			if !ok {
				t.Fatalf("positive example without source event: %+v", s)
			}
			if !s.SnapshotAt.Before(event.FailureDate) {
				t.Fatalf("positive snapshot %v not before failure %v", s.SnapshotAt, event.FailureDate)
			}
			continue
		}
		if !s.SnapshotAt.Equal(now) {
			t.Fatalf("expected negatives at now, got %v", s.SnapshotAt)
		}
	}
	if len(set.Notes) == 0 || !strings.Contains(set.Notes[0], "calendar-time") {
		t.Fatalf("expected sampling asymmetry note, got %v", set.Notes)
	}

	rows, labels := set.Matrix()
	if len(rows) != 5 || len(labels) != 5 || len(rows[0]) != len(Columns()) {
		t.Fatalf("unexpected matrix shape %dx%d", len(rows), len(rows[0]))
	}
}

func TestBuildTrainingSetWithQuietSampler(t *testing.T) {
	log := buildLog(t, []string{"EQ1", "EQ2"},
		failureFixture{"EQ1", 10, 5, 1000},
		failureFixture{"EQ1", 200, 8, 2000},
	)
	sampler := QuietSampler{Interval: 60 * day, Horizon: 30 * day}
	p := NewPipeline(nil, log, DefaultOptions(), WithNegativeSampler(sampler))
	now := dayAt(300)

	set, err := p.BuildTrainingSet(context.Background(), now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(set.Notes) != 0 {
		t.Fatalf("quiet sampling should not carry the asymmetry note")
	}
	events := log.Events("EQ1")
	for _, s := range set.Snapshots {
		if *s.Label != 0 || s.EquipmentID != "EQ1" {
			continue
		}
		end := s.SnapshotAt.Add(sampler.Horizon)
		for _, e := range events {
			if !e.FailureDate.Before(s.SnapshotAt) && e.FailureDate.Before(end) {
				t.Fatalf("negative at %v precedes failure %v within horizon", s.SnapshotAt, e.FailureDate)
			}
		}
		if !s.SnapshotAt.Before(now) {
			t.Fatalf("expected historical negative, got %v", s.SnapshotAt)
		}
	}
}
