package domain

import "time"

// NormalizeCalendar snaps monthly timestamps to the first of their month
// at midnight UTC. Model output places monthly samples at varying points
// within the month (mid-month for many CMIP models), which breaks naive
// time-axis comparison between datasets.
//
// The returned slice is a copy; the second result reports whether any
// timestamp actually changed, so callers can treat an already-normalized
// axis as a no-op. NormalizeCalendar never fails.
func NormalizeCalendar(times []time.Time) ([]time.Time, bool) {
	out := make([]time.Time, len(times))
	changed := false
	for i, t := range times {
		snapped := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		if !snapped.Equal(t) {
			changed = true
		}
		out[i] = snapped
	}
	return out, changed
}
