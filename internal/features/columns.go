package features

import "fmt"

// Feature column names, in artifact order.
const (
	ColTotalFailures      = "total_failures"
	ColDaysSinceLast      = "days_since_last_failure"
	ColAvgDowntimeHours   = "avg_downtime_hours"
	ColTotalRepairCost    = "total_repair_cost"
	ColFailuresRecent     = "failures_last_90d"
	ColMTBFDays           = "mtbf_days"
	ColCurrentVibration   = "current_vibration"
	ColCurrentTemperature = "current_temperature"
	ColOilQuality         = "oil_quality"
)

var columns = []string{
	ColTotalFailures,
	ColDaysSinceLast,
	ColAvgDowntimeHours,
	ColTotalRepairCost,
	ColFailuresRecent,
	ColMTBFDays,
	ColCurrentVibration,
	ColCurrentTemperature,
	ColOilQuality,
}

// Columns returns the feature column order every vector is produced in.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// LabelColumn names the training target for a horizon.
func LabelColumn(horizonDays int) string {
	return fmt.Sprintf("is_failure_next_%d_days", horizonDays)
}
