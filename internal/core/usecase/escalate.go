package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	lowConfidenceThreshold = 55.0
	negativePrediction     = 0.4
	recurrenceWindow       = 24 * time.Hour
)

// EscalationEngine classifies failure modes and maintains the prioritized
// review queue.
type EscalationEngine struct {
	store  ports.EscalationStore
	notify func(mode domain.FailureMode)
}

func NewEscalationEngine(store ports.EscalationStore) *EscalationEngine {
	return &EscalationEngine{store: store}
}

// SetNotifier registers a callback invoked after an escalation is created.
func (e *EscalationEngine) SetNotifier(fn func(mode domain.FailureMode)) {
	e.notify = fn
}

// FailureSignal carries everything needed to decide whether an answer
// should be escalated.
type FailureSignal struct {
	Question              string
	Answer                string
	Confidence            domain.ConfidenceScore
	Grounding             domain.GroundingResult
	NegativeRating        bool
	PredictedSatisfaction *float64
	Topic                 string
}

// Classify returns the failure mode for a signal, or ok=false when the
// answer needs no escalation. The most severe applicable mode wins.
func Classify(sig FailureSignal) (domain.FailureMode, string, bool) {
	var details []string

	switch {
	case !sig.Grounding.Grounded:
		if len(sig.Grounding.UnsupportedClaims) > 0 {
			claims := sig.Grounding.UnsupportedClaims
			if len(claims) > 3 {
				claims = claims[:3]
			}
			details = append(details, "unsupported claims: "+strings.Join(claims, "; "))
		}
		return domain.FailureHallucination, strings.Join(details, "; "), true

	case sig.Confidence.Features.SourceCount == 0:
		return domain.FailureInsufficientSources, "no sources found", true

	case sig.NegativeRating:
		return domain.FailurePredictedNegative, "user rated answer negative", true

	case sig.PredictedSatisfaction != nil && *sig.PredictedSatisfaction < negativePrediction:
		return domain.FailurePredictedNegative,
			fmt.Sprintf("predicted satisfaction %.2f", *sig.PredictedSatisfaction), true

	case sig.Confidence.Score < lowConfidenceThreshold:
		return domain.FailureLowConfidence,
			fmt.Sprintf("confidence %.1f", sig.Confidence.Score), true
	}

	return "", "", false
}

// Escalate creates an open queue item when the signal indicates a failure.
// Priority starts from the failure mode's severity and is bumped when the
// same question keeps recurring.
func (e *EscalationEngine) Escalate(ctx context.Context, sig FailureSignal) (*domain.Escalation, error) {
	mode, details, ok := Classify(sig)
	if !ok {
		return nil, nil
	}

	priority := mode.BasePriority()
	if recur, err := e.store.CountSimilarOpen(ctx, sig.Question, time.Now().Add(-recurrenceWindow)); err == nil && recur > 0 {
		priority++
		if priority > 10 {
			priority = 10
		}
	}

	esc := &domain.Escalation{
		ID:             uuid.NewString(),
		Question:       sig.Question,
		Answer:         sig.Answer,
		FailureMode:    mode,
		FailureDetails: details,
		Confidence:     sig.Confidence.Score,
		Priority:       priority,
		Status:         domain.EscalationOpen,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.store.Create(ctx, esc); err != nil {
		return nil, fmt.Errorf("create escalation: %w", err)
	}

	slog.Warn("escalation_created",
		"escalation_id", esc.ID,
		"failure_mode", string(mode),
		"priority", priority,
	)
	if e.notify != nil {
		e.notify(mode)
	}
	return esc, nil
}

func (e *EscalationEngine) ListOpen(ctx context.Context, limit int) ([]domain.Escalation, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.store.ListOpen(ctx, limit)
}

// Resolve closes an open escalation. Resolution is the only permitted
// mutation; resolving twice returns ErrEscalationClosed.
func (e *EscalationEngine) Resolve(ctx context.Context, id, resolvedBy string, action domain.ResolutionAction, fix string) error {
	switch action {
	case domain.ResolutionDismiss, domain.ResolutionApproveWithFix, domain.ResolutionPromoteGolden:
	default:
		return domain.WrapError(domain.ErrInvalidInput, "resolve escalation",
			fmt.Errorf("unknown action %q", action))
	}
	if action != domain.ResolutionDismiss && strings.TrimSpace(fix) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "resolve escalation",
			fmt.Errorf("action %q requires a corrected answer", action))
	}

	esc, err := e.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load escalation: %w", err)
	}
	if esc.Status != domain.EscalationOpen {
		return domain.ErrEscalationClosed
	}

	if err := e.store.Resolve(ctx, id, resolvedBy, action, fix); err != nil {
		return fmt.Errorf("resolve escalation: %w", err)
	}
	slog.Info("escalation_resolved", "escalation_id", id, "action", string(action))
	return nil
}

func (e *EscalationEngine) Stats(ctx context.Context) (domain.EscalationStats, error) {
	return e.store.Stats(ctx)
}
