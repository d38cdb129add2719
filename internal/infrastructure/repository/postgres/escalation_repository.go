package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

type EscalationRepository struct {
	db *sql.DB
}

func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

func (r *EscalationRepository) Create(ctx context.Context, esc *domain.Escalation) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO escalations (
	id, question, answer, failure_mode, failure_details, confidence, priority, status,
	suggested_fix, resolved_by, resolution, created_at, resolved_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		esc.ID, esc.Question, esc.Answer, string(esc.FailureMode), esc.FailureDetails,
		esc.Confidence, esc.Priority, string(esc.Status),
		esc.SuggestedFix, esc.ResolvedBy, string(esc.Resolution), esc.CreatedAt, esc.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*domain.Escalation, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, question, answer, failure_mode, failure_details, confidence, priority, status,
	suggested_fix, resolved_by, resolution, created_at, resolved_at
FROM escalations
WHERE id = $1
`, id)

	esc, err := scanEscalation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get escalation: %w", err)
	}
	return &esc, nil
}

// ListOpen returns open items ordered by priority, oldest first within a
// priority level.
func (r *EscalationRepository) ListOpen(ctx context.Context, limit int) ([]domain.Escalation, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, question, answer, failure_mode, failure_details, confidence, priority, status,
	suggested_fix, resolved_by, resolution, created_at, resolved_at
FROM escalations
WHERE status = 'open'
ORDER BY priority DESC, created_at ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list open escalations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Escalation, 0)
	for rows.Next() {
		esc, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		out = append(out, esc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return out, nil
}

func (r *EscalationRepository) Resolve(ctx context.Context, id, resolvedBy string, action domain.ResolutionAction, fix string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE escalations
SET status = 'resolved', resolved_by = $2, resolution = $3, suggested_fix = $4, resolved_at = $5
WHERE id = $1 AND status = 'open'
`, id, resolvedBy, string(action), fix, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("resolve escalation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve escalation rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrEscalationClosed
	}
	return nil
}

func (r *EscalationRepository) Stats(ctx context.Context) (domain.EscalationStats, error) {
	stats := domain.EscalationStats{ByFailureMode: make(map[domain.FailureMode]int)}

	rows, err := r.db.QueryContext(ctx, `
SELECT status, failure_mode, COUNT(*)
FROM escalations
GROUP BY status, failure_mode
`)
	if err != nil {
		return stats, fmt.Errorf("escalation stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, mode string
		var count int
		if err := rows.Scan(&status, &mode, &count); err != nil {
			return stats, fmt.Errorf("scan escalation stats: %w", err)
		}
		if status == string(domain.EscalationOpen) {
			stats.OpenCount += count
		} else {
			stats.ResolvedCount += count
		}
		stats.ByFailureMode[domain.FailureMode(mode)] += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate escalation stats: %w", err)
	}
	return stats, nil
}

func (r *EscalationRepository) CountSimilarOpen(ctx context.Context, question string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM escalations
WHERE status = 'open' AND LOWER(question) = LOWER($1) AND created_at > $2
`, question, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count similar escalations: %w", err)
	}
	return count, nil
}

type escalationScanner interface {
	Scan(dest ...interface{}) error
}

func scanEscalation(row escalationScanner) (domain.Escalation, error) {
	var esc domain.Escalation
	var mode, status string
	var details, fix, resolvedBy, resolution sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&esc.ID, &esc.Question, &esc.Answer, &mode, &details, &esc.Confidence,
		&esc.Priority, &status, &fix, &resolvedBy, &resolution, &esc.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return domain.Escalation{}, err
	}

	esc.FailureMode = domain.FailureMode(mode)
	esc.Status = domain.EscalationStatus(status)
	esc.FailureDetails = details.String
	esc.SuggestedFix = fix.String
	esc.ResolvedBy = resolvedBy.String
	esc.Resolution = domain.ResolutionAction(resolution.String)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		esc.ResolvedAt = &t
	}
	return esc, nil
}
