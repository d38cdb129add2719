package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, fb *domain.Feedback) error {
	sourceIDs, err := json.Marshal(fb.SourceIDs)
	if err != nil {
		return fmt.Errorf("marshal source ids: %w", err)
	}
	categories, err := json.Marshal(fb.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO feedback (id, question, answer, rating, correction, categories, source_ids, confidence, topic, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, fb.ID, fb.Question, fb.Answer, fb.Rating, fb.Correction, categories, sourceIDs, fb.Confidence, fb.Topic, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (r *FeedbackRepository) ListRecent(ctx context.Context, limit int) ([]domain.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, question, answer, rating, correction, categories, source_ids, confidence, topic, created_at
FROM feedback
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Feedback, 0)
	for rows.Next() {
		var fb domain.Feedback
		var correction, topic sql.NullString
		var categories, sourceIDs []byte
		if err := rows.Scan(&fb.ID, &fb.Question, &fb.Answer, &fb.Rating, &correction, &categories, &sourceIDs, &fb.Confidence, &topic, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		if err := json.Unmarshal(categories, &fb.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
		if err := json.Unmarshal(sourceIDs, &fb.SourceIDs); err != nil {
			return nil, fmt.Errorf("unmarshal source ids: %w", err)
		}
		fb.Correction = correction.String
		fb.Topic = topic.String
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}
