package models

import "time"

// RiskCategory is the ordinal bucket derived from a risk score.
type RiskCategory string

const (
	RiskLow      RiskCategory = "Low"
	RiskMedium   RiskCategory = "Medium"
	RiskHigh     RiskCategory = "High"
	RiskCritical RiskCategory = "Critical"
)

// RiskCategories lists the buckets in ascending order.
var RiskCategories = []RiskCategory{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// RiskRecord is one row of the ranked fleet risk table.
type RiskRecord struct {
	EquipmentID        string       `json:"equipment_id"`
	EquipmentType      string       `json:"equipment_type"`
	Location           string       `json:"location"`
	FailureProbability float64      `json:"failure_probability"`
	RiskScore          float64      `json:"risk_score"`
	RiskCategory       RiskCategory `json:"risk_category"`
}

// SkippedAsset reports an asset left out of a fleet score and why.
type SkippedAsset struct {
	EquipmentID string `json:"equipment_id"`
	Reason      string `json:"reason"`
}

// FleetRisk is the result of one scoring call. Records are sorted by descending risk score.
type FleetRisk struct {
	Records  []RiskRecord   `json:"records"`
	Skipped  []SkippedAsset `json:"skipped,omitempty"`
	RunID    string         `json:"model_run_id"`
	ScoredAt time.Time      `json:"scored_at"`
}

// CategoryCounts tallies records per category.
func (f FleetRisk) CategoryCounts() map[RiskCategory]int {
	counts := make(map[RiskCategory]int, len(RiskCategories))
	for _, c := range RiskCategories {
		counts[c] = 0
	}
	for _, r := range f.Records {
		counts[r.RiskCategory]++
	}
	return counts
}
