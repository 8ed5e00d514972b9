package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/database"
)

// UserRepository loads users with their weekly schedules
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

type scheduleDay struct {
	ScheduleID int `db:"schedule_id"`
	DayID      int `db:"day_id"`
}

// GetUser returns the user with employee schedule attached. Users without
// an employee row come back with a nil Employee.
func (r *UserRepository) GetUser(ctx context.Context, userID int) (*domain.User, error) {
	var user domain.User

	err := r.db.ReadOnly(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT id, name, last_name
			FROM users
			WHERE id = $1 AND deleted_at IS NULL
		`
		if err := tx.GetContext(ctx, &user, query, userID); err != nil {
			return mapError(err, "user")
		}

		var employeeID int
		query = `SELECT id FROM employees WHERE user_id = $1`
		err := tx.GetContext(ctx, &employeeID, query, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return mapError(err, "employee")
		}

		schedules, err := r.schedules(ctx, tx, employeeID)
		if err != nil {
			return err
		}

		user.Employee = &domain.Employee{ID: employeeID, Schedule: schedules}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// schedules keeps id order so that "last match wins" is stable
func (r *UserRepository) schedules(ctx context.Context, tx *sqlx.Tx, employeeID int) ([]domain.Schedule, error) {
	schedules := []domain.Schedule{}
	query := `
		SELECT id,
		       to_char(start_time, 'HH24:MI:SS') AS start_time,
		       to_char(end_time, 'HH24:MI:SS') AS end_time
		FROM schedules
		WHERE employee_id = $1
		ORDER BY id
	`
	if err := tx.SelectContext(ctx, &schedules, query, employeeID); err != nil {
		return nil, mapError(err, "schedule")
	}
	if len(schedules) == 0 {
		return schedules, nil
	}

	var days []scheduleDay
	query = `
		SELECT sd.schedule_id, sd.day_id
		FROM schedule_days sd
		JOIN schedules s ON s.id = sd.schedule_id
		WHERE s.employee_id = $1
		ORDER BY sd.schedule_id, sd.day_id
	`
	if err := tx.SelectContext(ctx, &days, query, employeeID); err != nil {
		return nil, mapError(err, "schedule_day")
	}

	index := make(map[int]int, len(schedules))
	for i, s := range schedules {
		index[s.ID] = i
	}
	for _, d := range days {
		if i, ok := index[d.ScheduleID]; ok {
			schedules[i].Days = append(schedules[i].Days, domain.Day{ID: d.DayID})
		}
	}

	return schedules, nil
}
