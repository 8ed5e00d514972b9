package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/shift-timer/internal/timer/domain"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// User creates an employee user working Monday to Friday, 09:00 to 17:00
func (f *FixtureFactory) User(opts ...func(*domain.User)) *domain.User {
	seq := f.nextSeq()

	user := &domain.User{
		ID:       seq,
		Name:     fmt.Sprintf("Test%d", seq),
		LastName: "User",
		Employee: &domain.Employee{
			ID:       seq,
			Schedule: []domain.Schedule{WeekdaySchedule("09:00:00", "17:00:00")},
		},
	}

	for _, opt := range opts {
		opt(user)
	}

	return user
}

// WithName sets the user's name
func WithName(first, last string) func(*domain.User) {
	return func(u *domain.User) {
		u.Name = first
		u.LastName = last
	}
}

// WithSchedules replaces the user's weekly schedules
func WithSchedules(schedules ...domain.Schedule) func(*domain.User) {
	return func(u *domain.User) {
		if u.Employee == nil {
			u.Employee = &domain.Employee{}
		}
		u.Employee.Schedule = schedules
	}
}

// WithoutEmployee strips the employee record
func WithoutEmployee() func(*domain.User) {
	return func(u *domain.User) {
		u.Employee = nil
	}
}

// WeekdaySchedule is a Monday to Friday schedule
func WeekdaySchedule(start, end string) domain.Schedule {
	return ScheduleOn(start, end, 1, 2, 3, 4, 5)
}

// ScheduleOn is a schedule for the given ISO weekdays
func ScheduleOn(start, end string, isoDays ...int) domain.Schedule {
	days := make([]domain.Day, len(isoDays))
	for i, id := range isoDays {
		days[i] = domain.Day{ID: id}
	}
	return domain.Schedule{Days: days, StartTime: start, EndTime: end}
}

// ClosedEntry is a finished entry of the given length
func ClosedEntry(userID int, start time.Time, length time.Duration) domain.TimeEntry {
	end := start.Add(length)
	return domain.TimeEntry{UserID: userID, StartTime: start, EndTime: &end, Status: domain.EntryStatusClosed}
}

// OpenEntry is a running entry
func OpenEntry(userID int, start time.Time) domain.TimeEntry {
	return domain.TimeEntry{UserID: userID, StartTime: start, Status: domain.EntryStatusOpen}
}

// InsertUser writes a user, its employee row and schedules. IDs are
// assigned by the database and written back.
func InsertUser(ctx context.Context, db *sqlx.DB, u *domain.User) error {
	err := db.QueryRowxContext(ctx,
		`INSERT INTO users (name, last_name) VALUES ($1, $2) RETURNING id`,
		u.Name, u.LastName,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	if u.Employee == nil {
		return nil
	}

	err = db.QueryRowxContext(ctx,
		`INSERT INTO employees (user_id) VALUES ($1) RETURNING id`, u.ID,
	).Scan(&u.Employee.ID)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}

	for i := range u.Employee.Schedule {
		s := &u.Employee.Schedule[i]
		err = db.QueryRowxContext(ctx,
			`INSERT INTO schedules (employee_id, start_time, end_time) VALUES ($1, $2, $3) RETURNING id`,
			u.Employee.ID, s.StartTime, s.EndTime,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		for _, d := range s.Days {
			if _, err := db.ExecContext(ctx,
				`INSERT INTO schedule_days (schedule_id, day_id) VALUES ($1, $2)`, s.ID, d.ID,
			); err != nil {
				return fmt.Errorf("insert schedule day: %w", err)
			}
		}
	}

	return nil
}

// InsertEntry writes a time entry and sets its ID
func InsertEntry(ctx context.Context, db *sqlx.DB, e *domain.TimeEntry) error {
	err := db.QueryRowxContext(ctx,
		`INSERT INTO entries (user_id, start_time, end_time, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		e.UserID, e.StartTime, e.EndTime, e.Status,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// InsertLeaveRequest writes a leave request and sets its ID
func InsertLeaveRequest(ctx context.Context, db *sqlx.DB, l *domain.LeaveRequest) error {
	err := db.QueryRowxContext(ctx,
		`INSERT INTO leave_requests (user_id, date, end_date, leave_type, status) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		l.UserID, l.Date, l.EndDate, l.LeaveType, l.Status,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert leave request: %w", err)
	}
	return nil
}
