// Package repository reads users, schedules, entries and leave requests
// straight from the time-tracking database. It is the alternative to the
// REST backend client and never writes.
package repository

import (
	"fmt"

	"github.com/medflow/shift-timer/pkg/database"
)

// mapError turns a database error into an AppError where one applies
func mapError(err error, resource string) error {
	if appErr := database.MapPQError(err, resource); appErr != nil {
		return appErr
	}
	return fmt.Errorf("query %s: %w", resource, err)
}
