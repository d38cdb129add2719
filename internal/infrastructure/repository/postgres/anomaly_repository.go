package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

type AnomalyRepository struct {
	db *sql.DB
}

func NewAnomalyRepository(db *sql.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

func (r *AnomalyRepository) SaveEvent(ctx context.Context, event domain.AnomalyEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO anomaly_events (
	id, metric, method, current_value, baseline_mean, baseline_std, z_score, severity, message, acknowledged, detected_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		event.ID, event.Metric, event.Method, event.CurrentValue, event.BaselineMean,
		event.BaselineStd, event.ZScore, string(event.Severity), event.Message,
		event.Acknowledged, event.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert anomaly event: %w", err)
	}
	return nil
}

func (r *AnomalyRepository) ListRecent(ctx context.Context, limit int) ([]domain.AnomalyEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, metric, method, current_value, baseline_mean, baseline_std, z_score, severity, message, acknowledged, detected_at
FROM anomaly_events
ORDER BY detected_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list anomaly events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnomalyEvent, 0)
	for rows.Next() {
		var event domain.AnomalyEvent
		var severity string
		if err := rows.Scan(
			&event.ID, &event.Metric, &event.Method, &event.CurrentValue, &event.BaselineMean,
			&event.BaselineStd, &event.ZScore, &severity, &event.Message,
			&event.Acknowledged, &event.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan anomaly event: %w", err)
		}
		event.Severity = domain.Severity(severity)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomaly events: %w", err)
	}
	return out, nil
}

func (r *AnomalyRepository) Acknowledge(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE anomaly_events SET acknowledged = TRUE WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("acknowledge anomaly: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("acknowledge anomaly rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AnomalyRepository) SaveRule(ctx context.Context, rule domain.AlertRule) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alert_rules (id, name, metric, condition, threshold, cooldown_seconds, enabled, fire_count, last_fired)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	metric = EXCLUDED.metric,
	condition = EXCLUDED.condition,
	threshold = EXCLUDED.threshold,
	cooldown_seconds = EXCLUDED.cooldown_seconds,
	enabled = EXCLUDED.enabled
`,
		rule.ID, rule.Name, rule.Metric, string(rule.Condition), rule.Threshold,
		int64(rule.Cooldown/time.Second), rule.Enabled, rule.FireCount, rule.LastFired,
	)
	if err != nil {
		return fmt.Errorf("save alert rule: %w", err)
	}
	return nil
}

func (r *AnomalyRepository) ListRules(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, metric, condition, threshold, cooldown_seconds, enabled, fire_count, last_fired
FROM alert_rules
ORDER BY name
`)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AlertRule, 0)
	for rows.Next() {
		var rule domain.AlertRule
		var condition string
		var cooldownSeconds int64
		var lastFired sql.NullTime
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Metric, &condition, &rule.Threshold,
			&cooldownSeconds, &rule.Enabled, &rule.FireCount, &lastFired,
		); err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		rule.Condition = domain.AlertCondition(condition)
		rule.Cooldown = time.Duration(cooldownSeconds) * time.Second
		if lastFired.Valid {
			t := lastFired.Time
			rule.LastFired = &t
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rules: %w", err)
	}
	return out, nil
}

func (r *AnomalyRepository) MarkRuleFired(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE alert_rules SET fire_count = fire_count + 1, last_fired = $2 WHERE id = $1
`, id, at)
	if err != nil {
		return fmt.Errorf("mark alert rule fired: %w", err)
	}
	return nil
}
