package reconcile

import (
	"time"

	"github.com/medflow/shift-timer/internal/timer/domain"
)

// isoWeekdays maps 0=Sunday..6=Saturday onto ISO ids 1=Monday..7=Sunday
var isoWeekdays = map[int]int{
	0: 7,
	1: 1,
	2: 2,
	3: 3,
	4: 4,
	5: 5,
	6: 6,
}

// ISOWeekday converts a Sunday-first day number (0..6) to its ISO id
func ISOWeekday(day int) (int, bool) {
	id, ok := isoWeekdays[day]
	return id, ok
}

// WeekdayID is the ISO id of a time.Weekday
func WeekdayID(d time.Weekday) int {
	id, _ := ISOWeekday(int(d))
	return id
}

// Window is the valid working window for today
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Display renderings in the user's zone
	StartLocal time.Time `json:"start_local"`
	EndLocal   time.Time `json:"end_local"`
}

// Contains reports whether now lies inside [Start, End]
func (w *Window) Contains(now time.Time) bool {
	return !now.Before(w.Start) && !now.After(w.End)
}

// Match finds today's window among the user's weekly schedules.
//
// Every schedule claiming today's ISO weekday overwrites the previous one,
// so the last match wins. matched reports whether any schedule claimed the
// day at all; the window is nil when nothing matched or when the winning
// schedule has malformed times. An end before the start wraps to the next day.
//
// The weekday is read from the UTC date, not the viewer's zone, so it agrees
// with the date ParseScheduleTime anchors the window on.
func Match(schedules []domain.Schedule, now time.Time, loc *time.Location) (w *Window, matched bool) {
	now = UTCClock(now)
	today := WeekdayID(now.Weekday())

	for _, s := range schedules {
		if !s.HasDay(today) {
			continue
		}
		matched = true
		w = window(s, now, loc)
	}

	return w, matched
}

func window(s domain.Schedule, now time.Time, loc *time.Location) *Window {
	start, ok := ParseScheduleTime(s.StartTime, now)
	if !ok {
		return nil
	}
	end, ok := ParseScheduleTime(s.EndTime, now)
	if !ok {
		return nil
	}
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}

	return &Window{
		Start:      start,
		End:        end,
		StartLocal: UTCToLocal(start, loc),
		EndLocal:   UTCToLocal(end, loc),
	}
}
