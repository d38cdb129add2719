package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

type escalationStoreFake struct {
	items map[string]*domain.Escalation
}

func newEscalationStoreFake() *escalationStoreFake {
	return &escalationStoreFake{items: map[string]*domain.Escalation{}}
}

func (f *escalationStoreFake) Create(_ context.Context, esc *domain.Escalation) error {
	cp := *esc
	f.items[esc.ID] = &cp
	return nil
}

func (f *escalationStoreFake) GetByID(_ context.Context, id string) (*domain.Escalation, error) {
	esc, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *esc
	return &cp, nil
}

func (f *escalationStoreFake) ListOpen(_ context.Context, limit int) ([]domain.Escalation, error) {
	var out []domain.Escalation
	for _, esc := range f.items {
		if esc.Status == domain.EscalationOpen {
			out = append(out, *esc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *escalationStoreFake) Resolve(_ context.Context, id, resolvedBy string, action domain.ResolutionAction, fix string) error {
	esc, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	esc.Status = domain.EscalationResolved
	esc.ResolvedBy = resolvedBy
	esc.Resolution = action
	esc.SuggestedFix = fix
	esc.ResolvedAt = &now
	return nil
}

func (f *escalationStoreFake) Stats(context.Context) (domain.EscalationStats, error) {
	stats := domain.EscalationStats{ByFailureMode: map[domain.FailureMode]int{}}
	for _, esc := range f.items {
		if esc.Status == domain.EscalationOpen {
			stats.OpenCount++
		} else {
			stats.ResolvedCount++
		}
		stats.ByFailureMode[esc.FailureMode]++
	}
	return stats, nil
}

func (f *escalationStoreFake) CountSimilarOpen(_ context.Context, question string, since time.Time) (int, error) {
	count := 0
	for _, esc := range f.items {
		if esc.Status == domain.EscalationOpen &&
			strings.EqualFold(esc.Question, question) &&
			esc.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func confidenceWith(score float64, sources int) domain.ConfidenceScore {
	return domain.ConfidenceScore{
		Score: score,
		Label: domain.LabelForScore(score),
		Features: domain.ConfidenceFeatures{
			SourceCount: sources,
		},
	}
}

func TestClassifyPrecedence(t *testing.T) {
	pred := 0.1

	// Failed grounding outranks everything else present on the signal.
	mode, _, ok := Classify(FailureSignal{
		Confidence:            confidenceWith(30, 0),
		Grounding:             domain.GroundingResult{Grounded: false},
		NegativeRating:        true,
		PredictedSatisfaction: &pred,
	})
	if !ok || mode != domain.FailureHallucination {
		t.Fatalf("mode = %s, want hallucination", mode)
	}

	mode, _, ok = Classify(FailureSignal{
		Confidence: confidenceWith(30, 0),
		Grounding:  domain.GroundingResult{Grounded: true},
	})
	if !ok || mode != domain.FailureInsufficientSources {
		t.Fatalf("mode = %s, want insufficient_sources", mode)
	}

	mode, _, ok = Classify(FailureSignal{
		Confidence:            confidenceWith(80, 3),
		Grounding:             domain.GroundingResult{Grounded: true},
		PredictedSatisfaction: &pred,
	})
	if !ok || mode != domain.FailurePredictedNegative {
		t.Fatalf("mode = %s, want predicted_negative", mode)
	}

	mode, _, ok = Classify(FailureSignal{
		Confidence: confidenceWith(40, 3),
		Grounding:  domain.GroundingResult{Grounded: true},
	})
	if !ok || mode != domain.FailureLowConfidence {
		t.Fatalf("mode = %s, want low_confidence", mode)
	}
}

func TestClassifyHealthyAnswerNotEscalated(t *testing.T) {
	_, _, ok := Classify(FailureSignal{
		Confidence: confidenceWith(82, 4),
		Grounding:  domain.GroundingResult{Grounded: true},
	})
	if ok {
		t.Fatalf("healthy answer must not be escalated")
	}
}

func TestLowConfidenceBoundaryIsExclusive(t *testing.T) {
	if _, _, ok := Classify(FailureSignal{
		Confidence: confidenceWith(55.0, 3),
		Grounding:  domain.GroundingResult{Grounded: true},
	}); ok {
		t.Fatalf("confidence 55.0 must not escalate")
	}
	if _, _, ok := Classify(FailureSignal{
		Confidence: confidenceWith(54.9, 3),
		Grounding:  domain.GroundingResult{Grounded: true},
	}); !ok {
		t.Fatalf("confidence 54.9 must escalate")
	}
}

func TestQueueOrdersHallucinationAboveOffTopic(t *testing.T) {
	store := newEscalationStoreFake()
	store.items["a"] = &domain.Escalation{
		ID: "a", Question: "q1", FailureMode: domain.FailureOffTopic,
		Priority: domain.FailureOffTopic.BasePriority(),
		Status:   domain.EscalationOpen, CreatedAt: time.Now().Add(-time.Hour),
	}
	store.items["b"] = &domain.Escalation{
		ID: "b", Question: "q2", FailureMode: domain.FailureHallucination,
		Priority: domain.FailureHallucination.BasePriority(),
		Status:   domain.EscalationOpen, CreatedAt: time.Now(),
	}
	engine := NewEscalationEngine(store)

	open, err := engine.ListOpen(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if open[0].FailureMode != domain.FailureHallucination {
		t.Fatalf("hallucination must sort above off_topic, got %s first", open[0].FailureMode)
	}
}

func TestEscalateBumpsPriorityOnRecurrence(t *testing.T) {
	store := newEscalationStoreFake()
	engine := NewEscalationEngine(store)
	sig := FailureSignal{
		Question:   "what rate for heritage on greens",
		Answer:     "...",
		Confidence: confidenceWith(40, 2),
		Grounding:  domain.GroundingResult{Grounded: true},
	}

	first, err := engine.Escalate(context.Background(), sig)
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if first.Priority != domain.FailureLowConfidence.BasePriority() {
		t.Fatalf("first priority = %d, want base %d", first.Priority, domain.FailureLowConfidence.BasePriority())
	}

	second, err := engine.Escalate(context.Background(), sig)
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if second.Priority != first.Priority+1 {
		t.Fatalf("recurring question priority = %d, want %d", second.Priority, first.Priority+1)
	}
}

func TestEscalatePriorityCappedAtTen(t *testing.T) {
	store := newEscalationStoreFake()
	engine := NewEscalationEngine(store)
	sig := FailureSignal{
		Question:   "same question",
		Confidence: confidenceWith(40, 0),
		Grounding:  domain.GroundingResult{Grounded: false},
	}

	var last *domain.Escalation
	for i := 0; i < 4; i++ {
		esc, err := engine.Escalate(context.Background(), sig)
		if err != nil {
			t.Fatalf("Escalate() error = %v", err)
		}
		last = esc
	}
	if last.Priority > 10 {
		t.Fatalf("priority exceeded cap: %d", last.Priority)
	}
}

func TestResolveRequiresFixForNonDismiss(t *testing.T) {
	store := newEscalationStoreFake()
	engine := NewEscalationEngine(store)
	esc, _ := engine.Escalate(context.Background(), FailureSignal{
		Question:   "q",
		Confidence: confidenceWith(40, 2),
		Grounding:  domain.GroundingResult{Grounded: true},
	})

	err := engine.Resolve(context.Background(), esc.ID, "agronomist", domain.ResolutionApproveWithFix, "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Resolve() without fix error = %v, want ErrInvalidInput", err)
	}

	if err := engine.Resolve(context.Background(), esc.ID, "agronomist", domain.ResolutionApproveWithFix, "use 0.2 oz"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
}

func TestResolveTwiceReturnsClosed(t *testing.T) {
	store := newEscalationStoreFake()
	engine := NewEscalationEngine(store)
	esc, _ := engine.Escalate(context.Background(), FailureSignal{
		Question:   "q",
		Confidence: confidenceWith(40, 2),
		Grounding:  domain.GroundingResult{Grounded: true},
	})

	if err := engine.Resolve(context.Background(), esc.ID, "agronomist", domain.ResolutionDismiss, ""); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	err := engine.Resolve(context.Background(), esc.ID, "agronomist", domain.ResolutionDismiss, "")
	if !errors.Is(err, domain.ErrEscalationClosed) {
		t.Fatalf("second Resolve() error = %v, want ErrEscalationClosed", err)
	}
}

func TestResolveRejectsUnknownAction(t *testing.T) {
	engine := NewEscalationEngine(newEscalationStoreFake())
	err := engine.Resolve(context.Background(), "any", "agronomist", "archive", "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Resolve() with unknown action error = %v, want ErrInvalidInput", err)
	}
}
