package utils

import (
	"testing"
	"time"
)

func TestParseTimestampLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{" 2024-03-01 ", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parse %q: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "yesterday", "2024-13-45"} {
		if _, err := ParseTimestamp(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestWholeDaysTruncates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if d := WholeDays(start, start.Add(36*time.Hour)); d != 1 {
		t.Fatalf("expected 1 whole day, got %d", d)
	}
	if d := Days(start, start.Add(36*time.Hour)); d != 1.5 {
		t.Fatalf("expected 1.5 days, got %f", d)
	}
}
