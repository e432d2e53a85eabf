package utils

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts lists the formats accepted for failure_date, in the order they are tried.
// pandas writes "2006-01-02 15:04:05" when exporting datetimes, registries tend to send RFC3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// ParseTimestamp parses value using the accepted layouts. Zone-less values are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported layout", value)
}

// WholeDays returns the number of whole days from start to end, truncating toward zero
// like a timedelta's .days for non-negative spans.
func WholeDays(start, end time.Time) int {
	return int(end.Sub(start) / (24 * time.Hour))
}

// Days returns the fractional number of days between two instants.
func Days(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}
