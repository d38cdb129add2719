package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

// FeedbackUseCase turns user ratings into calibration points, trust updates
// and escalations. This is the loop that makes confidence measurable.
type FeedbackUseCase struct {
	store       ports.FeedbackStore
	calibration *CalibrationEngine
	escalation  *EscalationEngine
	registry    ports.SourceRegistry
}

func NewFeedbackUseCase(
	store ports.FeedbackStore,
	calibration *CalibrationEngine,
	escalation *EscalationEngine,
	registry ports.SourceRegistry,
) *FeedbackUseCase {
	return &FeedbackUseCase{
		store:       store,
		calibration: calibration,
		escalation:  escalation,
		registry:    registry,
	}
}

func (uc *FeedbackUseCase) Record(ctx context.Context, fb domain.Feedback) error {
	if strings.TrimSpace(fb.Question) == "" || strings.TrimSpace(fb.Rating) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record feedback",
			fmt.Errorf("question and rating are required"))
	}
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	if err := uc.store.Create(ctx, &fb); err != nil {
		return fmt.Errorf("store feedback: %w", err)
	}

	satisfaction := domain.SatisfactionForRating(fb.Rating)

	point := domain.CalibrationPoint{
		ID:                  uuid.NewString(),
		PredictedConfidence: fb.Confidence,
		Rating:              fb.Rating,
		Topic:               fb.Topic,
		CreatedAt:           fb.CreatedAt,
	}
	if err := uc.calibration.RecordPoint(ctx, point); err != nil {
		return err
	}

	for _, sourceID := range fb.SourceIDs {
		uc.registry.UpdateTrust(sourceID, satisfaction)
	}

	if satisfaction < 0.3 {
		sig := FailureSignal{
			Question: fb.Question,
			Answer:   fb.Answer,
			Confidence: domain.ConfidenceScore{
				Score: fb.Confidence,
				Label: domain.LabelForScore(fb.Confidence),
				Features: domain.ConfidenceFeatures{
					SourceCount: len(fb.SourceIDs),
				},
			},
			Grounding:      domain.GroundingResult{Grounded: true},
			NegativeRating: true,
			Topic:          fb.Topic,
		}
		if fb.Correction != "" {
			sig.Answer = fb.Answer + "\n\n[user correction] " + fb.Correction
		}
		if _, err := uc.escalation.Escalate(ctx, sig); err != nil {
			return err
		}
	}

	return nil
}
