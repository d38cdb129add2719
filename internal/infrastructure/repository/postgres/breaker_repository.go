package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BreakerRepository persists breaker trips for audit and source trust for
// restarts. In-memory registry state stays authoritative within a process.
type BreakerRepository struct {
	db *sql.DB
}

func NewBreakerRepository(db *sql.DB) *BreakerRepository {
	return &BreakerRepository{db: db}
}

func (r *BreakerRepository) RecordTrip(ctx context.Context, sourceID string, failures int, recoveryAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO breaker_trips (source_id, consecutive_failures, recovery_at, tripped_at)
VALUES ($1,$2,$3,$4)
`, sourceID, failures, recoveryAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert breaker trip: %w", err)
	}
	return nil
}

func (r *BreakerRepository) SaveTrust(ctx context.Context, sourceID string, trust float64) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO source_trust (source_id, trust_score, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (source_id) DO UPDATE SET trust_score = EXCLUDED.trust_score, updated_at = EXCLUDED.updated_at
`, sourceID, trust, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save source trust: %w", err)
	}
	return nil
}

func (r *BreakerRepository) LoadTrust(ctx context.Context) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source_id, trust_score FROM source_trust`)
	if err != nil {
		return nil, fmt.Errorf("load source trust: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var sourceID string
		var trust float64
		if err := rows.Scan(&sourceID, &trust); err != nil {
			return nil, fmt.Errorf("scan source trust: %w", err)
		}
		out[sourceID] = trust
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source trust: %w", err)
	}
	return out, nil
}
