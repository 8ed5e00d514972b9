package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StampLayout is the fixed MM/DD/YYYY HH:mm:ss layout wall clocks are
// exchanged in
const StampLayout = "01/02/2006 15:04:05"

// Naive re-labels the wall clock of t as UTC and drops sub-second precision.
// The result is the timezone-naive instant all comparisons run on.
func Naive(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, 0, time.UTC)
}

// UTCClock is the naive reading of the UTC wall clock at t
func UTCClock(t time.Time) time.Time {
	return Naive(t.UTC())
}

// UTCToLocal treats the wall clock of t as UTC, re-renders that instant in
// loc and returns the naive result. The double conversion is intended:
// naive schedule times are displayed as though they were UTC readings.
func UTCToLocal(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Naive(Naive(t).In(loc))
}

// ParseScheduleTime parses a naive "HH:MM:SS" time of day and anchors it on
// the UTC date of now. ok is false for anything malformed.
func ParseScheduleTime(s string, now time.Time) (t time.Time, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	limits := [3]int{23, 59, 59}
	var fields [3]int
	for i, p := range parts {
		v, ok := parseClockField(p, limits[i])
		if !ok {
			return time.Time{}, false
		}
		fields[i] = v
	}

	y, mo, d := now.UTC().Date()
	return time.Date(y, mo, d, fields[0], fields[1], fields[2], 0, time.UTC), true
}

func parseClockField(s string, max int) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil || v > max {
		return 0, false
	}
	return v, true
}

// FormatStamp renders the wall clock of t in StampLayout
func FormatStamp(t time.Time) string {
	return t.Format(StampLayout)
}

// ParseStamp reads a StampLayout string back into a naive instant
func ParseStamp(s string) (time.Time, error) {
	t, err := time.Parse(StampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stamp %q: %w", s, err)
	}
	return t, nil
}

// LoadZone resolves an IANA zone name, falling back to fallback when name is empty
func LoadZone(name, fallback string) (*time.Location, error) {
	if name == "" {
		name = fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
