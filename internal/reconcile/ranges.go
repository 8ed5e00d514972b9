package reconcile

import "time"

// Entry ranges
const (
	RangeDay  = "day"
	RangeWeek = "week"
)

// EntryRange returns the inclusive calendar dates whose entries feed the
// running total: today only, or Monday of the ISO week through today.
// Dates are UTC midnights.
func EntryRange(now time.Time, kind string) (start, end time.Time) {
	now = UTCClock(now)
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if kind != RangeWeek {
		return end, end
	}

	offset := WeekdayID(end.Weekday()) - 1
	return end.AddDate(0, 0, -offset), end
}
