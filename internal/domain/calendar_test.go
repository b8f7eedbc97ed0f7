package domain

import (
	"testing"
	"time"
)

// TestNormalizeCalendar_SnapsMidMonthTimestamps covers the common CMIP
// case of monthly samples stamped mid-month.
func TestNormalizeCalendar_SnapsMidMonthTimestamps(t *testing.T) {
	times := []time.Time{
		time.Date(2000, 1, 16, 12, 0, 0, 0, time.UTC),
		time.Date(2000, 2, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 3, 16, 12, 0, 0, 0, time.UTC),
	}

	normalized, changed := NormalizeCalendar(times)
	if !changed {
		t.Error("expected changed=true for mid-month timestamps")
	}
	for i, got := range normalized {
		want := time.Date(2000, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("entry %d: expected %v, got %v", i, want, got)
		}
	}

	// Input must be untouched.
	if times[0].Day() != 16 {
		t.Error("NormalizeCalendar mutated its input")
	}
}

// TestNormalizeCalendar_NoOp reports changed=false for an axis that is
// already first-of-month UTC.
func TestNormalizeCalendar_NoOp(t *testing.T) {
	times := monthlyTimes(6)
	normalized, changed := NormalizeCalendar(times)
	if changed {
		t.Error("expected changed=false for normalized input")
	}
	for i := range times {
		if !normalized[i].Equal(times[i]) {
			t.Errorf("entry %d altered: %v -> %v", i, times[i], normalized[i])
		}
	}
}
