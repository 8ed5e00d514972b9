package repository

import (
	"context"
	"time"

	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/database"
)

// EntryRepository reads time entries
type EntryRepository struct {
	db *database.DB
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *database.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// ListEntries returns the user's entries that started on any calendar day
// from q.StartTime through q.EndTime, oldest first
func (r *EntryRepository) ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.TimeEntry, error) {
	from := dayStart(q.StartTime)
	until := dayStart(q.EndTime).AddDate(0, 0, 1)

	entries := []domain.TimeEntry{}
	query := `
		SELECT id, user_id, start_time, end_time, status
		FROM entries
		WHERE user_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`
	if err := r.db.SelectContext(ctx, &entries, query, q.UserID, from, until); err != nil {
		return nil, mapError(err, "entry")
	}

	for i := range entries {
		entries[i] = entries[i].UTC()
	}

	return entries, nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
