package utils

import (
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded window of recent durations (fleet scoring, training
// runs) and answers percentile queries over it.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	maxSize int
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{maxSize: maxSize, samples: make([]time.Duration, 0, maxSize)}
}

// Observe records a new duration, evicting the oldest sample once the window is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.samples) == l.maxSize {
		l.samples = slices.Delete(l.samples, 0, 1)
	}
	l.samples = append(l.samples, d)
}

// Percentile returns the percentile (0-100) duration. Returns zero if no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.samples) == 0 {
		return 0
	}
	switch {
	case p <= 0:
		return slices.Min(l.samples)
	case p >= 100:
		return slices.Max(l.samples)
	}

	sorted := slices.Clone(l.samples)
	slices.Sort(sorted)
	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[min(max(index, 0), len(sorted)-1)]
}

// Mean returns the arithmetic mean of the retained samples.
func (l *LatencyTracker) Mean() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range l.samples {
		total += s
	}
	return total / time.Duration(len(l.samples))
}

// Count returns number of samples recorded.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}
