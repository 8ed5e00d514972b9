// Package source picks the collaborators a timer reads from: the REST
// backend or the time-tracking database directly.
package source

import (
	"context"
	"fmt"

	"github.com/medflow/shift-timer/internal/timer/client"
	"github.com/medflow/shift-timer/internal/timer/repository"
	"github.com/medflow/shift-timer/internal/timer/service"
	"github.com/medflow/shift-timer/pkg/config"
	"github.com/medflow/shift-timer/pkg/database"
	"github.com/medflow/shift-timer/pkg/logger"
)

// Backend is an opened source. DB is nil for the http source.
type Backend struct {
	Sources service.Sources
	DB      *database.DB

	kind string
}

// Close releases the database connection, if any
func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Close()
}

// Health reports the state of the underlying store
func (b *Backend) Health(ctx context.Context) map[string]string {
	if b.DB == nil {
		return map[string]string{"status": "up", "source": b.kind}
	}
	status := b.DB.Health(ctx)
	status["source"] = b.kind
	return status
}

// Open wires the sources selected by cfg.Timer.Source
func Open(cfg *config.Config, log *logger.Logger) (*Backend, error) {
	switch cfg.Timer.Source {
	case config.SourceHTTP:
		c := client.NewBackendClient(&cfg.Backend, log)
		return &Backend{Sources: service.Sources{Users: c, Entries: c, Leaves: c}, kind: config.SourceHTTP}, nil

	case config.SourcePostgres:
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Sources: service.Sources{
				Users:   repository.NewUserRepository(db),
				Entries: repository.NewEntryRepository(db),
				Leaves:  repository.NewLeaveRequestRepository(db),
			},
			DB:   db,
			kind: config.SourcePostgres,
		}, nil

	default:
		return nil, fmt.Errorf("unknown timer source %q", cfg.Timer.Source)
	}
}
