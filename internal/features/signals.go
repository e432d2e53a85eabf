package features

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// conditionSignals stands in for a sensor feed. Values are a pure function of the
// equipment id, the snapshot day and the days since the last failure.
type conditionSignals struct {
	Vibration   float64
	Temperature float64
	OilQuality  float64
}

// riskFactor scales the synthetic readings: assets that just failed look healthier,
// assets with a long failure-free stretch look worse.
func riskFactor(daysSinceLast int) float64 {
	switch {
	case daysSinceLast < 30:
		return 0.5
	case daysSinceLast > 100:
		return 1.5
	default:
		return 1.0
	}
}

func synthesizeSignals(equipmentID string, at time.Time, daysSinceLast int) conditionSignals {
	seed := signalSeed(equipmentID, at)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rf := riskFactor(daysSinceLast)

	vibration := (2.5 + 0.5*rng.NormFloat64()) * rf
	temperature := (65 + 10*rng.NormFloat64()) * rf
	oil := 100 - 0.2*float64(daysSinceLast) + 5*rng.NormFloat64()

	return conditionSignals{
		Vibration:   vibration,
		Temperature: temperature,
		OilQuality:  math.Min(math.Max(oil, 0), 100),
	}
}

// signalSeed combines the snapshot's UTC calendar day with a per-equipment digit:
// the trailing character when it is a digit, otherwise an FNV-1a hash of the id mod 10.
func signalSeed(equipmentID string, at time.Time) uint64 {
	day := at.UTC().Truncate(24 * time.Hour).Unix()
	return uint64(day) + equipmentDigit(equipmentID)
}

func equipmentDigit(equipmentID string) uint64 {
	if n := len(equipmentID); n > 0 {
		if c := equipmentID[n-1]; c >= '0' && c <= '9' {
			return uint64(c - '0')
		}
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(equipmentID))
	return h.Sum64() % 10
}
