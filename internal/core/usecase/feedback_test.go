package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

type feedbackStoreFake struct {
	created []domain.Feedback
}

func (f *feedbackStoreFake) Create(_ context.Context, fb *domain.Feedback) error {
	f.created = append(f.created, *fb)
	return nil
}

func (f *feedbackStoreFake) ListRecent(_ context.Context, limit int) ([]domain.Feedback, error) {
	if limit > 0 && len(f.created) > limit {
		return f.created[len(f.created)-limit:], nil
	}
	return f.created, nil
}

func newFeedbackFixture() (*FeedbackUseCase, *feedbackStoreFake, *calibrationStoreFake, *escalationStoreFake, *Registry) {
	store := &feedbackStoreFake{}
	calStore := &calibrationStoreFake{}
	escStore := newEscalationStoreFake()
	registry := NewRegistry(testSources())
	uc := NewFeedbackUseCase(store, NewCalibrationEngine(calStore), NewEscalationEngine(escStore), registry)
	return uc, store, calStore, escStore, registry
}

func TestRecordFeedbackAppendsCalibrationPoint(t *testing.T) {
	uc, store, calStore, _, _ := newFeedbackFixture()

	err := uc.Record(context.Background(), domain.Feedback{
		Question:   "heritage rate for greens",
		Answer:     "0.2 oz per 1000 sq ft",
		Rating:     "helpful",
		Confidence: 82,
		Topic:      "chemical",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("feedback not stored")
	}
	if len(calStore.points) != 1 {
		t.Fatalf("calibration point not appended")
	}
	point := calStore.points[0]
	if point.PredictedConfidence != 82 || point.ActualSatisfaction != 1.0 {
		t.Fatalf("point = %+v, want predicted 82 actual 1.0", point)
	}
}

func TestRecordNegativeFeedbackEscalatesAndDropsTrust(t *testing.T) {
	uc, _, _, escStore, registry := newFeedbackFixture()
	trustBefore := registry.TrustScore("labels")

	err := uc.Record(context.Background(), domain.Feedback{
		Question:   "heritage rate for greens",
		Answer:     "5 oz per 1000 sq ft",
		Rating:     "wrong",
		Correction: "label maximum is 0.4 oz",
		SourceIDs:  []string{"labels"},
		Confidence: 78,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if len(escStore.items) != 1 {
		t.Fatalf("wrong rating must escalate, got %d items", len(escStore.items))
	}
	for _, esc := range escStore.items {
		if esc.FailureMode != domain.FailurePredictedNegative {
			t.Fatalf("failure mode = %s, want predicted_negative", esc.FailureMode)
		}
		if !strings.Contains(esc.Answer, "label maximum is 0.4 oz") {
			t.Fatalf("user correction missing from escalation answer: %q", esc.Answer)
		}
	}
	if got := registry.TrustScore("labels"); got >= trustBefore {
		t.Fatalf("trust should drop after wrong rating: before=%v after=%v", trustBefore, got)
	}
}

func TestRecordPositiveFeedbackDoesNotEscalate(t *testing.T) {
	uc, _, _, escStore, registry := newFeedbackFixture()
	trustBefore := registry.TrustScore("labels")

	err := uc.Record(context.Background(), domain.Feedback{
		Question:   "q",
		Answer:     "a",
		Rating:     "helpful",
		SourceIDs:  []string{"labels"},
		Confidence: 80,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(escStore.items) != 0 {
		t.Fatalf("helpful rating must not escalate")
	}
	if got := registry.TrustScore("labels"); got < trustBefore {
		t.Fatalf("trust should not drop after helpful rating")
	}
}

func TestRecordPartialRatingNoEscalation(t *testing.T) {
	uc, _, _, escStore, _ := newFeedbackFixture()

	err := uc.Record(context.Background(), domain.Feedback{
		Question:   "q",
		Answer:     "a",
		Rating:     "partially_helpful",
		Confidence: 60,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(escStore.items) != 0 {
		t.Fatalf("satisfaction 0.5 is above the escalation cutoff")
	}
}

func TestRecordRejectsMissingFields(t *testing.T) {
	uc, _, _, _, _ := newFeedbackFixture()

	err := uc.Record(context.Background(), domain.Feedback{Rating: "helpful"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Record() without question error = %v, want ErrInvalidInput", err)
	}
	err = uc.Record(context.Background(), domain.Feedback{Question: "q"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Record() without rating error = %v, want ErrInvalidInput", err)
	}
}

func TestSatisfactionRatingMap(t *testing.T) {
	cases := map[string]float64{
		"helpful":           1.0,
		"partially_helpful": 0.5,
		"ok":                0.5,
		"partially_wrong":   0.2,
		"unhelpful":         0.1,
		"wrong":             0.0,
		"bad":               0.0,
	}
	for rating, want := range cases {
		if got := domain.SatisfactionForRating(rating); got != want {
			t.Fatalf("SatisfactionForRating(%q) = %v, want %v", rating, got, want)
		}
	}
}
