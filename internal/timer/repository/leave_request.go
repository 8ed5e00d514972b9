package repository

import (
	"context"
	"time"

	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/database"
)

// LeaveRequestRepository reads leave requests
type LeaveRequestRepository struct {
	db *database.DB
}

// NewLeaveRequestRepository creates a new leave request repository
func NewLeaveRequestRepository(db *database.DB) *LeaveRequestRepository {
	return &LeaveRequestRepository{db: db}
}

// LeaveRequestsOn returns the user's non-rejected leave requests covering date
func (r *LeaveRequestRepository) LeaveRequestsOn(ctx context.Context, userID int, date time.Time) ([]domain.LeaveRequest, error) {
	requests := []domain.LeaveRequest{}
	query := `
		SELECT id, user_id, date, end_date, leave_type, status
		FROM leave_requests
		WHERE user_id = $1
		  AND date <= $2
		  AND COALESCE(end_date, date) >= $2
		  AND status <> 'rejected'
		ORDER BY date, id
	`
	if err := r.db.SelectContext(ctx, &requests, query, userID, dayStart(date)); err != nil {
		return nil, mapError(err, "leave_request")
	}
	return requests, nil
}
