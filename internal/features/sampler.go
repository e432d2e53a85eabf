package features

import (
	"slices"
	"time"

	"github.com/miradorstack/mirador-risk/internal/models"
)

// NegativeSampler chooses the snapshot instants used as label-0 examples for one asset.
type NegativeSampler interface {
	Name() string
	Instants(equipment models.Equipment, events []models.FailureEvent, now time.Time) []time.Time
}

// NowSampler takes a single negative per asset at the training instant.
// Positives come from arbitrary historical instants, so a model trained this way can
// pick up calendar effects rather than asset condition.
type NowSampler struct{}

func (NowSampler) Name() string { return "now" }

func (NowSampler) Instants(_ models.Equipment, _ []models.FailureEvent, now time.Time) []time.Time {
	return []time.Time{now}
}

// QuietSampler walks back from now-Horizon in Interval steps and keeps every instant
// whose following Horizon contains no failure. Instants never precede the asset's first
// recorded failure. Assets with no qualifying instant fall back to now.
type QuietSampler struct {
	Interval time.Duration
	Horizon  time.Duration
}

func (QuietSampler) Name() string { return "quiet" }

func (s QuietSampler) Instants(_ models.Equipment, events []models.FailureEvent, now time.Time) []time.Time {
	if s.Interval <= 0 || len(events) == 0 {
		return []time.Time{now}
	}
	first := events[0].FailureDate
	var instants []time.Time
	for t := now.Add(-s.Horizon); t.After(first); t = t.Add(-s.Interval) {
		if quiet(events, t, t.Add(s.Horizon)) {
			instants = append(instants, t)
		}
	}
	if len(instants) == 0 {
		return []time.Time{now}
	}
	slices.SortFunc(instants, func(a, b time.Time) int { return a.Compare(b) })
	return instants
}

func quiet(events []models.FailureEvent, from, to time.Time) bool {
	for _, e := range events {
		if !e.FailureDate.Before(from) && e.FailureDate.Before(to) {
			return false
		}
	}
	return true
}
