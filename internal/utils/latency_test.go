package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for _, d := range durations {
		tracker.Observe(d)
	}

	if tracker.Count() != len(durations) {
		t.Fatalf("expected count %d, got %d", len(durations), tracker.Count())
	}
	if p95 := tracker.Percentile(95); p95 < 40*time.Millisecond {
		t.Fatalf("expected percentile >= 40ms, got %v", p95)
	}
	if p0 := tracker.Percentile(0); p0 != 10*time.Millisecond {
		t.Fatalf("expected min 10ms, got %v", p0)
	}
	if p100 := tracker.Percentile(100); p100 != 50*time.Millisecond {
		t.Fatalf("expected max 50ms, got %v", p100)
	}
	if mean := tracker.Mean(); mean != 30*time.Millisecond {
		t.Fatalf("expected mean 30ms, got %v", mean)
	}
}

func TestLatencyTrackerBoundedSize(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 0; i < 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected tracker size 3, got %d", tracker.Count())
	}
	if p0 := tracker.Percentile(0); p0 != 7*time.Millisecond {
		t.Fatalf("expected oldest retained sample 7ms, got %v", p0)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(0)
	if tracker.Percentile(50) != 0 || tracker.Mean() != 0 {
		t.Fatalf("expected zero values for empty tracker")
	}
}
