package ports

import (
	"context"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

// AskService is the inbound contract for question answering.
type AskService interface {
	Ask(ctx context.Context, query domain.Query) (*domain.Answer, error)
	AskStream(ctx context.Context, query domain.Query) (TokenStream, <-chan *domain.Answer, error)
}

// FeedbackService records user ratings and feeds calibration/escalation.
type FeedbackService interface {
	Record(ctx context.Context, fb domain.Feedback) error
}

// CalibrationService exposes the calibration report and retraining.
type CalibrationService interface {
	Report(ctx context.Context, topic string) (*domain.CalibrationReport, error)
	Train(ctx context.Context) error
}

// EscalationService is the admin review-queue surface.
type EscalationService interface {
	ListOpen(ctx context.Context, limit int) ([]domain.Escalation, error)
	Resolve(ctx context.Context, id, resolvedBy string, action domain.ResolutionAction, fix string) error
	Stats(ctx context.Context) (domain.EscalationStats, error)
}

// AnomalyService is the admin anomaly/alert surface.
type AnomalyService interface {
	Recent(ctx context.Context, limit int) ([]domain.AnomalyEvent, error)
	Acknowledge(ctx context.Context, id string) error
	Rules(ctx context.Context) ([]domain.AlertRule, error)
}
