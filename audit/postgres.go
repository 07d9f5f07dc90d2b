package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/config"
)

// PostgresRecorder persists auth events to PostgreSQL.
type PostgresRecorder struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresRecorder opens a connection pool to the audit database and
// verifies connectivity.
func NewPostgresRecorder(cfg *config.DatabaseConfig, logger *zap.Logger) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	logger.Info("audit database connection established",
		zap.String("connection", cfg.LogString()))

	return NewPostgresRecorderWithDB(db, logger), nil
}

// NewPostgresRecorderWithDB wraps an existing connection pool. Used by tests.
func NewPostgresRecorderWithDB(db *sql.DB, logger *zap.Logger) *PostgresRecorder {
	return &PostgresRecorder{
		db:     db,
		logger: logger,
	}
}

// InitSchema creates the auth_events table when it does not exist yet.
func (r *PostgresRecorder) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS auth_events (
			id UUID PRIMARY KEY,
			subject_id VARCHAR(255) NOT NULL,
			email VARCHAR(320),
			action VARCHAR(32) NOT NULL,
			remote_ip VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_auth_events_subject
			ON auth_events (subject_id, created_at DESC);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return nil
}

// Record inserts a new auth event
func (r *PostgresRecorder) Record(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO auth_events (id, subject_id, email, action, remote_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.SubjectID,
		event.Email,
		event.Action,
		event.RemoteIP,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	r.logger.Debug("auth event recorded",
		zap.String("id", event.ID.String()),
		zap.String("action", string(event.Action)))
	return nil
}

// ListBySubject returns the most recent auth events for a subject,
// newest first.
func (r *PostgresRecorder) ListBySubject(ctx context.Context, subjectID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, subject_id, email, action, remote_ip, created_at
		FROM auth_events
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Email, &e.Action, &e.RemoteIP, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auth events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies connectivity to the audit database
func (r *PostgresRecorder) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("audit database health check failed: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (r *PostgresRecorder) Close() error {
	r.logger.Info("closing audit database connection")
	return r.db.Close()
}
