package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorTaxonomyMatchesSentinels(t *testing.T) {
	dataErr := fmt.Errorf("load: %w", &DataError{Table: "equipment_downtime", Column: "failure_date", Row: 3, Err: errors.New("empty time value")})
	if !errors.Is(dataErr, ErrData) {
		t.Fatalf("expected DataError to match ErrData")
	}
	if !strings.Contains(dataErr.Error(), "row 3") || !strings.Contains(dataErr.Error(), "failure_date") {
		t.Fatalf("expected row and column in message, got %q", dataErr.Error())
	}

	cause := errors.New("fit exploded")
	unavailable := &ModelUnavailableError{Err: cause}
	if !errors.Is(unavailable, ErrModelUnavailable) || !errors.Is(unavailable, cause) {
		t.Fatalf("expected ModelUnavailableError to match sentinel and cause")
	}

	mismatch := &SchemaMismatchError{Expected: []string{"a", "b"}, Got: []string{"b", "a"}}
	if !errors.Is(mismatch, ErrSchemaMismatch) {
		t.Fatalf("expected SchemaMismatchError to match sentinel")
	}
	if errors.Is(mismatch, ErrData) {
		t.Fatalf("schema mismatch must not be reported as data error")
	}
}

func TestTrainingSetMatrixSkipsUnlabelled(t *testing.T) {
	ts := TrainingSet{Snapshots: []FeatureSnapshot{
		FeatureSnapshot{Features: FeatureVector{Values: []float64{1}}}.Labelled(1),
		{Features: FeatureVector{Values: []float64{2}}},
		FeatureSnapshot{Features: FeatureVector{Values: []float64{3}}}.Labelled(0),
	}}
	rows, labels := ts.Matrix()
	if len(rows) != 2 || len(labels) != 2 {
		t.Fatalf("expected 2 labelled rows, got %d/%d", len(rows), len(labels))
	}
	pos, neg := ts.Counts()
	if pos != 1 || neg != 1 {
		t.Fatalf("expected 1/1 counts, got %d/%d", pos, neg)
	}
}
