package models

import (
	"slices"
	"time"
)

// FeatureVector is an ordered set of named numeric features. Columns and Values are parallel.
type FeatureVector struct {
	Columns []string
	Values  []float64
}

// Get returns the value of the named column.
func (v FeatureVector) Get(name string) (float64, bool) {
	idx := slices.Index(v.Columns, name)
	if idx < 0 || idx >= len(v.Values) {
		return 0, false
	}
	return v.Values[idx], true
}

// FeatureSnapshot is a point-in-time view of one asset. Every feature is computed from
// failure events strictly before SnapshotAt.
type FeatureSnapshot struct {
	EquipmentID   string
	EquipmentType string
	Location      string
	SnapshotAt    time.Time
	Features      FeatureVector
	// Label is nil for inference snapshots, 0 or 1 for training examples.
	Label *int
	// SourceEventID links a positive example to the failure it precedes.
	SourceEventID string
}

// Labelled returns a copy of s carrying label.
func (s FeatureSnapshot) Labelled(label int) FeatureSnapshot {
	s.Label = &label
	return s
}

// TrainingSet is a labelled collection of snapshots built for a single training run.
type TrainingSet struct {
	Columns     []string
	Snapshots   []FeatureSnapshot
	LabelColumn string
	Horizon     time.Duration
	BuiltAt     time.Time
	// Notes carries caveats about how the set was sampled.
	Notes []string
}

// Matrix returns the feature rows and labels. Unlabelled snapshots are skipped.
func (ts TrainingSet) Matrix() ([][]float64, []int) {
	rows := make([][]float64, 0, len(ts.Snapshots))
	labels := make([]int, 0, len(ts.Snapshots))
	for _, s := range ts.Snapshots {
		if s.Label == nil {
			continue
		}
		rows = append(rows, s.Features.Values)
		labels = append(labels, *s.Label)
	}
	return rows, labels
}

// Counts returns the number of positive and negative examples.
func (ts TrainingSet) Counts() (positives, negatives int) {
	for _, s := range ts.Snapshots {
		if s.Label == nil {
			continue
		}
		if *s.Label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	return positives, negatives
}
