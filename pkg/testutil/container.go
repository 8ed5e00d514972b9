// Package testutil provides testing utilities for the timer service.
// It includes a PostgreSQL testcontainer carrying the time-tracking schema,
// sqlmock helpers, fixtures and HTTP helpers.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "timetracker_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	defaults := DefaultPostgresConfig()
	if cfg.Image == "" {
		cfg.Image = defaults.Image
	}
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Username == "" {
		cfg.Username = defaults.Username
	}
	if cfg.Password == "" {
		cfg.Password = defaults.Password
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// TimeTrackingSchema mirrors the tables the timer reads. The backend owns
// the real migrations; this is only what the read queries need.
const TimeTrackingSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		deleted_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS employees (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL UNIQUE REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id SERIAL PRIMARY KEY,
		employee_id INT NOT NULL REFERENCES employees(id),
		start_time TIME NOT NULL,
		end_time TIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedule_days (
		schedule_id INT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		day_id SMALLINT NOT NULL CHECK (day_id BETWEEN 1 AND 7),
		PRIMARY KEY (schedule_id, day_id)
	);

	CREATE TABLE IF NOT EXISTS entries (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		status SMALLINT NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_entries_user_start ON entries (user_id, start_time);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id),
		date DATE NOT NULL,
		end_date DATE,
		leave_type VARCHAR(100) NOT NULL DEFAULT '',
		status VARCHAR(50) NOT NULL DEFAULT 'pending'
	);
`

// CreateTimeTrackingSchema creates the tables read by the timer repositories
func (c *PostgresContainer) CreateTimeTrackingSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, TimeTrackingSchema); err != nil {
		return fmt.Errorf("failed to create time tracking schema: %w", err)
	}
	return nil
}

// TruncateAll empties every table between tests
func TruncateAll(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE leave_requests, entries, schedule_days, schedules, employees, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
