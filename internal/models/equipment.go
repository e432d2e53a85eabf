package models

import "time"

// Equipment is a row of the fleet master table. Read-only to the risk engine.
type Equipment struct {
	ID       string
	Type     string
	Location string
}

// FailureEvent is a row of the append-only failure log.
type FailureEvent struct {
	ID            string
	EquipmentID   string
	FailureDate   time.Time
	DowntimeHours float64
	RepairCost    float64
	FailureType   string
	Component     string
}

// UnknownLocation is used when the master table has no location for an asset.
const UnknownLocation = "Unknown"
