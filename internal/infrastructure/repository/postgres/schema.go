package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables idempotently. The advisory lock serializes
// bootstrap DDL across concurrent api/worker startups.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082301)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS calibration_points (
	id TEXT PRIMARY KEY,
	predicted_confidence DOUBLE PRECISION NOT NULL,
	rating TEXT NOT NULL,
	actual_satisfaction DOUBLE PRECISION NOT NULL,
	topic TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calibration_points_topic ON calibration_points(topic);
CREATE INDEX IF NOT EXISTS idx_calibration_points_created_at ON calibration_points(created_at DESC);

CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	failure_mode TEXT NOT NULL,
	failure_details TEXT,
	confidence DOUBLE PRECISION NOT NULL,
	priority INT NOT NULL,
	status TEXT NOT NULL,
	suggested_fix TEXT,
	resolved_by TEXT,
	resolution TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_escalations_status_priority ON escalations(status, priority DESC, created_at);

CREATE TABLE IF NOT EXISTS breaker_trips (
	id BIGSERIAL PRIMARY KEY,
	source_id TEXT NOT NULL,
	consecutive_failures INT NOT NULL,
	recovery_at TIMESTAMPTZ NOT NULL,
	tripped_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_breaker_trips_source ON breaker_trips(source_id, tripped_at DESC);

CREATE TABLE IF NOT EXISTS source_trust (
	source_id TEXT PRIMARY KEY,
	trust_score DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_rules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	metric TEXT NOT NULL,
	condition TEXT NOT NULL,
	threshold DOUBLE PRECISION NOT NULL,
	cooldown_seconds BIGINT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	fire_count INT NOT NULL DEFAULT 0,
	last_fired TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS anomaly_events (
	id TEXT PRIMARY KEY,
	metric TEXT NOT NULL,
	method TEXT NOT NULL,
	current_value DOUBLE PRECISION NOT NULL,
	baseline_mean DOUBLE PRECISION NOT NULL,
	baseline_std DOUBLE PRECISION NOT NULL,
	z_score DOUBLE PRECISION NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	detected_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomaly_events_detected_at ON anomaly_events(detected_at DESC);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	rating TEXT NOT NULL,
	correction TEXT,
	categories JSONB NOT NULL DEFAULT '[]'::jsonb,
	source_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence DOUBLE PRECISION NOT NULL,
	topic TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
