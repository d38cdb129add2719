package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

type CalibrationRepository struct {
	db *sql.DB
}

func NewCalibrationRepository(db *sql.DB) *CalibrationRepository {
	return &CalibrationRepository{db: db}
}

func (r *CalibrationRepository) AppendPoint(ctx context.Context, point domain.CalibrationPoint) error {
	if point.ID == "" {
		point.ID = uuid.NewString()
	}
	if point.CreatedAt.IsZero() {
		point.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO calibration_points (id, predicted_confidence, rating, actual_satisfaction, topic, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, point.ID, point.PredictedConfidence, point.Rating, point.ActualSatisfaction, point.Topic, point.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert calibration point: %w", err)
	}
	return nil
}

func (r *CalibrationRepository) ListPoints(ctx context.Context, topic string, limit int) ([]domain.CalibrationPoint, error) {
	query := `
SELECT id, predicted_confidence, rating, actual_satisfaction, topic, created_at
FROM calibration_points
`
	args := []any{}
	if topic != "" {
		query += "WHERE topic = $1\n"
		args = append(args, topic)
	}
	query += "ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf("\nLIMIT %d", limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calibration points: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CalibrationPoint, 0)
	for rows.Next() {
		var p domain.CalibrationPoint
		var pointTopic sql.NullString
		if err := rows.Scan(&p.ID, &p.PredictedConfidence, &p.Rating, &p.ActualSatisfaction, &pointTopic, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calibration point: %w", err)
		}
		p.Topic = pointTopic.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibration points: %w", err)
	}
	return out, nil
}

func (r *CalibrationRepository) CountPoints(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calibration_points`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count calibration points: %w", err)
	}
	return count, nil
}
