package reconcile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/medflow/shift-timer/internal/timer/domain"
)

// Relative-time granularity labels
const (
	LabelSeconds = "sec"
	LabelMinutes = "min"
	LabelHours   = "hours"
)

// EntryDuration is the length of a closed entry in decimal hours.
// ok is false for entries that have not ended.
func EntryDuration(e domain.TimeEntry) (hours float64, ok bool) {
	if e.EndTime == nil {
		return 0, false
	}
	return float64(e.EndTime.Sub(e.StartTime)) / float64(time.Hour), true
}

// SumHoursForUser adds up the closed entries of userID. Open entries
// contribute nothing; the live timer tracks them.
func SumHoursForUser(entries []domain.TimeEntry, userID int) float64 {
	var total float64
	for _, e := range entries {
		if e.UserID != userID {
			continue
		}
		if h, ok := EntryDuration(e); ok {
			total += h
		}
	}
	return total
}

// OpenEntry returns userID's running entry, or nil
func OpenEntry(entries []domain.TimeEntry, userID int) *domain.TimeEntry {
	for i := range entries {
		if entries[i].UserID == userID && entries[i].IsOpen() {
			return &entries[i]
		}
	}
	return nil
}

// LiveElapsed renders now-start as HH:MM:SS with unbounded hours.
// Each field is floored; a start in the future reads as zero.
func LiveElapsed(start, now time.Time) string {
	d := now.Sub(start)
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// FormatHours renders decimal hours as HH:MM:SS. Hours and minutes are
// floored, seconds rounded, and a rounded 60 carries upward. Hours are
// cumulative, so 25.5 is "25:30:00". Negative or non-finite input renders
// as zero.
func FormatHours(h float64) string {
	if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
		h = 0
	}

	hours := math.Floor(h)
	fracMinutes := (h - hours) * 60
	minutes := math.Floor(fracMinutes)
	seconds := math.Round((fracMinutes - minutes) * 60)

	if seconds >= 60 {
		seconds = 0
		minutes++
	}
	if minutes >= 60 {
		minutes = 0
		hours++
	}

	return fmt.Sprintf("%02d:%02d:%02d", int64(hours), int64(minutes), int64(seconds))
}

// TimeAgoLabel picks the display granularity for an HH:MM:SS string.
// Malformed input yields "".
func TimeAgoLabel(hhmmss string) string {
	parts := strings.Split(hhmmss, ":")
	if len(parts) != 3 {
		return ""
	}

	switch {
	case parts[0] == "00" && parts[1] == "00":
		return LabelSeconds
	case parts[0] == "00":
		return LabelMinutes
	default:
		return LabelHours
	}
}

// StartedEarly reports whether the entry began at or before the window opened
func StartedEarly(entryStart, validStart *time.Time) bool {
	if entryStart == nil || validStart == nil {
		return false
	}
	return !entryStart.After(*validStart)
}
