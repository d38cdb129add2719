package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

func TestLabelBucketsAtBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.ConfidenceLabel
	}{
		{0, domain.ConfidenceLow},
		{54.9, domain.ConfidenceLow},
		{55.0, domain.ConfidenceGood},
		{74.9, domain.ConfidenceGood},
		{75.0, domain.ConfidenceHigh},
		{100, domain.ConfidenceHigh},
	}
	for _, tc := range cases {
		if got := domain.LabelForScore(tc.score); got != tc.want {
			t.Fatalf("LabelForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func scoredResults(scores ...float64) []domain.ScoredResult {
	out := make([]domain.ScoredResult, len(scores))
	for i, s := range scores {
		out[i] = domain.ScoredResult{HybridScore: s, Rank: i + 1}
	}
	return out
}

func TestConfidenceNoSources(t *testing.T) {
	scorer := NewConfidenceScorer()
	got := scorer.Score("answer", nil, domain.GroundingResult{Grounded: true}, 0)
	if got.Score != noSourceScore {
		t.Fatalf("no-source score = %v, want %v", got.Score, noSourceScore)
	}
	if got.Label != domain.ConfidenceLow {
		t.Fatalf("no-source label = %s, want low", got.Label)
	}
}

func TestConfidenceMonotoneInFeatures(t *testing.T) {
	scorer := NewConfidenceScorer()
	passed := domain.GroundingResult{Grounded: true}
	failed := domain.GroundingResult{Grounded: false}

	few := scorer.Score("answer", scoredResults(0.5), passed, 0.7)
	many := scorer.Score("answer", scoredResults(0.5, 0.5, 0.5), passed, 0.7)
	if many.Score < few.Score {
		t.Fatalf("more sources lowered confidence: %v < %v", many.Score, few.Score)
	}

	worse := scorer.Score("answer", scoredResults(0.3), passed, 0.7)
	better := scorer.Score("answer", scoredResults(0.9), passed, 0.7)
	if better.Score < worse.Score {
		t.Fatalf("better match lowered confidence: %v < %v", better.Score, worse.Score)
	}

	ungrounded := scorer.Score("answer", scoredResults(0.9), failed, 0.7)
	grounded := scorer.Score("answer", scoredResults(0.9), passed, 0.7)
	if grounded.Score < ungrounded.Score {
		t.Fatalf("passing grounding lowered confidence: %v < %v", grounded.Score, ungrounded.Score)
	}

	lowTrust := scorer.Score("answer", scoredResults(0.9), passed, 0.2)
	highTrust := scorer.Score("answer", scoredResults(0.9), passed, 0.9)
	if highTrust.Score < lowTrust.Score {
		t.Fatalf("higher trust lowered confidence: %v < %v", highTrust.Score, lowTrust.Score)
	}
}

func TestConfidenceStrongEvidenceIsHigh(t *testing.T) {
	scorer := NewConfidenceScorer()
	answer := "Apply Heritage at 0.2 oz per 1000 sq ft on a 14 day interval for dollar spot control on creeping bentgrass. Rotate FRAC groups to manage resistance and keep surfaces dry overnight where possible to reduce infection periods during summer stress."
	got := scorer.Score(answer, scoredResults(0.92, 0.8, 0.75), domain.GroundingResult{Grounded: true}, 0.85)
	if got.Score < 75 {
		t.Fatalf("strong evidence score = %v, want >= 75", got.Score)
	}
	if got.Label != domain.ConfidenceHigh {
		t.Fatalf("label = %s, want high", got.Label)
	}
}

type calibrationStoreFake struct {
	points []domain.CalibrationPoint
	err    error
}

func (f *calibrationStoreFake) AppendPoint(_ context.Context, point domain.CalibrationPoint) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, point)
	return nil
}

func (f *calibrationStoreFake) ListPoints(_ context.Context, topic string, _ int) ([]domain.CalibrationPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topic == "" {
		return f.points, nil
	}
	var out []domain.CalibrationPoint
	for _, p := range f.points {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *calibrationStoreFake) CountPoints(context.Context) (int, error) {
	return len(f.points), nil
}

func TestECEWeightedGap(t *testing.T) {
	// Bin (predicted 80, actual 70, count 10) and (predicted 50, actual 50,
	// count 5): ECE = 10/15*10 + 5/15*0 = 6.67.
	var points []domain.CalibrationPoint
	for i := 0; i < 10; i++ {
		points = append(points, domain.CalibrationPoint{PredictedConfidence: 80, ActualSatisfaction: 0.7})
	}
	for i := 0; i < 5; i++ {
		points = append(points, domain.CalibrationPoint{PredictedConfidence: 50, ActualSatisfaction: 0.5})
	}

	report := BinCalibrationPoints(points, calibrationBins)
	if report.TotalPoints != 15 {
		t.Fatalf("total points = %d, want 15", report.TotalPoints)
	}
	if math.Abs(report.ECE-6.67) > 0.01 {
		t.Fatalf("ECE = %v, want 6.67 +/- 0.01", report.ECE)
	}
}

func TestBinningIsAppendOnly(t *testing.T) {
	points := []domain.CalibrationPoint{
		{PredictedConfidence: 80, ActualSatisfaction: 0.7},
		{PredictedConfidence: 42, ActualSatisfaction: 0.5},
	}
	before := make([]domain.CalibrationPoint, len(points))
	copy(before, points)

	_ = BinCalibrationPoints(points, calibrationBins)

	for i := range points {
		if points[i] != before[i] {
			t.Fatalf("binning mutated historical point %d", i)
		}
	}
}

func TestTrainFailsClosedBelowMinimumSamples(t *testing.T) {
	store := &calibrationStoreFake{}
	for i := 0; i < minTrainSamples-1; i++ {
		store.points = append(store.points, domain.CalibrationPoint{PredictedConfidence: 70, ActualSatisfaction: 1})
	}
	engine := NewCalibrationEngine(store)

	err := engine.Train(context.Background())
	if !errors.Is(err, domain.ErrNotEnoughData) {
		t.Fatalf("Train() error = %v, want ErrNotEnoughData", err)
	}
	if _, ok := engine.Model().Predict([]float64{0.7, 0, 1, 0}); ok {
		t.Fatalf("model must stay untrained after failed-closed training")
	}
}

func TestTrainProducesUsableModel(t *testing.T) {
	store := &calibrationStoreFake{}
	for i := 0; i < 40; i++ {
		store.points = append(store.points, domain.CalibrationPoint{PredictedConfidence: 85, Rating: "helpful", ActualSatisfaction: 1})
	}
	for i := 0; i < 40; i++ {
		store.points = append(store.points, domain.CalibrationPoint{PredictedConfidence: 30, Rating: "wrong", ActualSatisfaction: 0})
	}
	engine := NewCalibrationEngine(store)

	if err := engine.Train(context.Background()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	high, ok := engine.Model().Predict([]float64{0.85, 1, 0, 0})
	if !ok {
		t.Fatalf("expected trained model")
	}
	low, _ := engine.Model().Predict([]float64{0.30, 0, 1, 0})
	if high <= low {
		t.Fatalf("trained model inverted: high=%v low=%v", high, low)
	}
}

func TestRecordPointDerivesSatisfaction(t *testing.T) {
	store := &calibrationStoreFake{}
	engine := NewCalibrationEngine(store)

	err := engine.RecordPoint(context.Background(), domain.CalibrationPoint{
		PredictedConfidence: 80,
		Rating:              "helpful",
	})
	if err != nil {
		t.Fatalf("RecordPoint() error = %v", err)
	}
	if store.points[0].ActualSatisfaction != 1.0 {
		t.Fatalf("satisfaction = %v, want 1.0 for helpful", store.points[0].ActualSatisfaction)
	}
}
