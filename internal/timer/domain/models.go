package domain

import (
	"strings"
	"time"
)

// Entry statuses as stored by the time-entry backend
const (
	EntryStatusOpen   = 0
	EntryStatusClosed = 1
)

// Day is one weekday of a schedule, 1 (Monday) through 7 (Sunday)
type Day struct {
	ID int `json:"id" db:"day_id"`
}

// Schedule is one recurring weekly shift. StartTime and EndTime are
// naive "HH:MM:SS" wall-clock strings.
type Schedule struct {
	ID        int    `json:"id,omitempty" db:"id"`
	Days      []Day  `json:"days"`
	StartTime string `json:"start_time" db:"start_time"`
	EndTime   string `json:"end_time" db:"end_time"`
}

// HasDay reports whether the schedule applies on the given ISO weekday
func (s Schedule) HasDay(isoDay int) bool {
	for _, d := range s.Days {
		if d.ID == isoDay {
			return true
		}
	}
	return false
}

// Employee carries the weekly schedule of a user
type Employee struct {
	ID       int        `json:"id,omitempty" db:"id"`
	Schedule []Schedule `json:"schedule"`
}

// User is the subject of a timer
type User struct {
	ID       int       `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	LastName string    `json:"last_name" db:"last_name"`
	Employee *Employee `json:"employee,omitempty"`
}

// FullName returns "Name LastName", trimmed when either half is empty
func (u *User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.LastName)
}

// Schedules returns the user's weekly schedules, nil when the user is not an employee
func (u *User) Schedules() []Schedule {
	if u == nil || u.Employee == nil {
		return nil
	}
	return u.Employee.Schedule
}

// TimeEntry is one clock-in/clock-out record
type TimeEntry struct {
	ID        int        `json:"id" db:"id"`
	UserID    int        `json:"user_id" db:"user_id"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time" db:"end_time"`
	Status    int        `json:"status" db:"status"`
}

// IsOpen reports whether the entry is still running.
// At most one open entry per user is assumed, never checked.
func (e TimeEntry) IsOpen() bool {
	return e.Status == EntryStatusOpen && e.EndTime == nil
}

// UTC returns the entry with both timestamps moved to UTC. Sources may
// hand back offset-bearing times and the engine reads wall clocks.
func (e TimeEntry) UTC() TimeEntry {
	e.StartTime = e.StartTime.UTC()
	if e.EndTime != nil {
		end := e.EndTime.UTC()
		e.EndTime = &end
	}
	return e
}

// EntryQuery selects a user's entries that started inside [StartTime, EndTime]
type EntryQuery struct {
	UserID    int       `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// LeaveRequest is an approved or pending absence covering a date
type LeaveRequest struct {
	ID        int        `json:"id" db:"id"`
	UserID    int        `json:"user_id" db:"user_id"`
	Date      time.Time  `json:"date" db:"date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
	LeaveType string     `json:"leave_type,omitempty" db:"leave_type"`
	Status    string     `json:"status,omitempty" db:"status"`
}

// Covers reports whether the request includes the calendar day of t
func (l LeaveRequest) Covers(t time.Time) bool {
	day := dateOf(t)
	start := dateOf(l.Date)
	end := start
	if l.EndDate != nil {
		end = dateOf(*l.EndDate)
	}
	return !day.Before(start) && !day.After(end)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
