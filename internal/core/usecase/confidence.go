package usecase

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	noSourceScore    = 35.0
	baseScore        = 50.0
	calibrationBins  = 10
	minTrainSamples  = 50
	trainingFeatures = 4
)

var rateUnitPattern = regexp.MustCompile(`\d+\.?\d*\s*(oz|lb|gal|pint|acre|sq ft|ppm)`)

// ConfidenceScorer produces a 0–100 confidence from pipeline features.
// The combination is monotone: more sources, a better best match, higher
// trust, or passing grounding never lowers the score, all else equal.
type ConfidenceScorer struct{}

func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

func (s *ConfidenceScorer) Score(answer string, results []domain.ScoredResult, grounding domain.GroundingResult, meanTrust float64) domain.ConfidenceScore {
	features := domain.ConfidenceFeatures{
		SourceCount:     len(results),
		GroundingPassed: grounding.Grounded,
		MeanTrust:       meanTrust,
		AnswerLength:    len(answer),
		HasRates:        rateUnitPattern.MatchString(strings.ToLower(answer)),
	}
	for _, r := range results {
		if r.HybridScore > features.BestMatchScore {
			features.BestMatchScore = r.HybridScore
		}
	}

	if features.SourceCount == 0 {
		return domain.ConfidenceScore{
			Score:    noSourceScore,
			Label:    domain.LabelForScore(noSourceScore),
			Features: features,
		}
	}

	score := baseScore

	// Supporting source count, saturating at five.
	count := features.SourceCount
	if count > 5 {
		count = 5
	}
	score += float64(count) * 3.0

	// Best single-source match, up to +15.
	best := features.BestMatchScore
	if best > 1 {
		best = 1
	}
	score += best * 15.0

	// Mean source trust, up to +10.
	trust := features.MeanTrust
	if trust > 1 {
		trust = 1
	}
	if trust < 0 {
		trust = 0
	}
	score += trust * 10.0

	if features.GroundingPassed {
		score += 5.0
	} else {
		score -= 15.0
	}

	// Answer specificity: concrete rates with units read as higher quality.
	if features.HasRates {
		score += 4.0
	}
	if features.AnswerLength > 400 {
		score += 3.0
	} else if features.AnswerLength > 150 {
		score += 2.0
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return domain.ConfidenceScore{
		Score:    math.Round(score*10) / 10,
		Label:    domain.LabelForScore(score),
		Features: features,
	}
}

// SatisfactionModel is a logistic model over confidence features, retrained
// from accumulated calibration points.
type SatisfactionModel struct {
	mu      sync.RWMutex
	weights []float64
	bias    float64
	trained bool
}

// Predict returns estimated satisfaction in [0,1], or ok=false before the
// first successful training.
func (m *SatisfactionModel) Predict(features []float64) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained || len(features) != len(m.weights) {
		return 0, false
	}
	z := m.bias
	for i, w := range m.weights {
		z += w * features[i]
	}
	return 1.0 / (1.0 + math.Exp(-z)), true
}

// CalibrationEngine maintains calibration points, the binned report, and
// satisfaction model training. Points are append-only; the report re-bins.
type CalibrationEngine struct {
	store ports.CalibrationStore
	model *SatisfactionModel
}

func NewCalibrationEngine(store ports.CalibrationStore) *CalibrationEngine {
	return &CalibrationEngine{store: store, model: &SatisfactionModel{}}
}

func (e *CalibrationEngine) Model() *SatisfactionModel { return e.model }

func (e *CalibrationEngine) RecordPoint(ctx context.Context, point domain.CalibrationPoint) error {
	point.ActualSatisfaction = domain.SatisfactionForRating(point.Rating)
	if err := e.store.AppendPoint(ctx, point); err != nil {
		return fmt.Errorf("append calibration point: %w", err)
	}
	return nil
}

// Report bins historical points and computes the Expected Calibration Error
// as the count-weighted mean gap between predicted and observed.
func (e *CalibrationEngine) Report(ctx context.Context, topic string) (*domain.CalibrationReport, error) {
	points, err := e.store.ListPoints(ctx, topic, 0)
	if err != nil {
		return nil, fmt.Errorf("list calibration points: %w", err)
	}
	report := BinCalibrationPoints(points, calibrationBins)
	report.Topic = topic
	return report, nil
}

// BinCalibrationPoints aggregates points into fixed-width confidence bins.
func BinCalibrationPoints(points []domain.CalibrationPoint, numBins int) *domain.CalibrationReport {
	report := &domain.CalibrationReport{TotalPoints: len(points)}
	if len(points) == 0 || numBins <= 0 {
		return report
	}

	binWidth := 100.0 / float64(numBins)
	type acc struct {
		predicted float64
		actual    float64
		count     int
	}
	accs := make([]acc, numBins)

	for _, p := range points {
		idx := int(p.PredictedConfidence / binWidth)
		if idx >= numBins {
			idx = numBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		accs[idx].predicted += p.PredictedConfidence
		accs[idx].actual += p.ActualSatisfaction
		accs[idx].count++
	}

	var ece float64
	total := float64(len(points))
	for i, a := range accs {
		if a.count == 0 {
			continue
		}
		bin := domain.CalibrationBin{
			Low:                float64(i) * binWidth,
			High:               float64(i+1) * binWidth,
			PredictedAvg:       a.predicted / float64(a.count),
			ActualSatisfaction: a.actual / float64(a.count) * 100,
			Count:              a.count,
		}
		bin.Gap = math.Abs(bin.PredictedAvg - bin.ActualSatisfaction)
		ece += float64(a.count) / total * bin.Gap
		report.Bins = append(report.Bins, bin)
	}
	report.ECE = ece
	return report
}

// Train refits the satisfaction model. Below the minimum sample size it
// fails closed with ErrNotEnoughData rather than fitting a degenerate model.
func (e *CalibrationEngine) Train(ctx context.Context) error {
	points, err := e.store.ListPoints(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("list calibration points: %w", err)
	}
	if len(points) < minTrainSamples {
		return domain.WrapError(domain.ErrNotEnoughData, "train satisfaction model",
			fmt.Errorf("need %d samples, have %d", minTrainSamples, len(points)))
	}

	// Features per point: normalized confidence plus crude topic signals.
	features := make([][]float64, len(points))
	labels := make([]float64, len(points))
	for i, p := range points {
		features[i] = []float64{
			p.PredictedConfidence / 100.0,
			boolFeature(p.PredictedConfidence >= 75),
			boolFeature(p.PredictedConfidence < 55),
			boolFeature(p.Topic == "chemical" || p.Topic == "disease"),
		}
		labels[i] = p.ActualSatisfaction
	}

	weights, bias := fitLogistic(features, labels, trainingFeatures)

	e.model.mu.Lock()
	e.model.weights = weights
	e.model.bias = bias
	e.model.trained = true
	e.model.mu.Unlock()
	return nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// fitLogistic runs plain gradient descent; the feature space is tiny and the
// sample counts are small, so nothing fancier is warranted.
func fitLogistic(features [][]float64, labels []float64, dim int) ([]float64, float64) {
	weights := make([]float64, dim)
	bias := 0.0
	const (
		learningRate = 0.1
		epochs       = 200
	)

	n := float64(len(features))
	for epoch := 0; epoch < epochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, x := range features {
			z := bias
			for j := 0; j < dim && j < len(x); j++ {
				z += weights[j] * x[j]
			}
			pred := 1.0 / (1.0 + math.Exp(-z))
			diff := pred - labels[i]
			for j := 0; j < dim && j < len(x); j++ {
				gradW[j] += diff * x[j]
			}
			gradB += diff
		}
		for j := range weights {
			weights[j] -= learningRate * gradW[j] / n
		}
		bias -= learningRate * gradB / n
	}
	return weights, bias
}
