package domain

import "time"

type ConfidenceLabel string

const (
	ConfidenceLow  ConfidenceLabel = "low"
	ConfidenceGood ConfidenceLabel = "good"
	ConfidenceHigh ConfidenceLabel = "high"
)

// ConfidenceFeatures are the inputs that produced a confidence score.
type ConfidenceFeatures struct {
	SourceCount     int     `json:"source_count"`
	BestMatchScore  float64 `json:"best_match_score"`
	GroundingPassed bool    `json:"grounding_passed"`
	MeanTrust       float64 `json:"mean_trust"`
	AnswerLength    int     `json:"answer_length"`
	HasRates        bool    `json:"has_rates"`
}

// ConfidenceScore is a 0–100 score with its label bucket and features.
type ConfidenceScore struct {
	Score    float64            `json:"score"`
	Label    ConfidenceLabel    `json:"label"`
	Features ConfidenceFeatures `json:"features"`
}

// LabelForScore buckets a numeric confidence: <55 low, 55–74 good, >=75 high.
func LabelForScore(score float64) ConfidenceLabel {
	switch {
	case score >= 75:
		return ConfidenceHigh
	case score >= 55:
		return ConfidenceGood
	default:
		return ConfidenceLow
	}
}

// CalibrationPoint pairs a predicted confidence with observed satisfaction.
// Points are append-only; aggregation re-bins, never mutates.
type CalibrationPoint struct {
	ID                  string    `json:"id"`
	PredictedConfidence float64   `json:"predicted_confidence"`
	Rating              string    `json:"rating"`
	ActualSatisfaction  float64   `json:"actual_satisfaction"`
	Topic               string    `json:"topic,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// CalibrationBin aggregates points falling into one confidence range.
type CalibrationBin struct {
	Low                float64 `json:"low"`
	High               float64 `json:"high"`
	PredictedAvg       float64 `json:"predicted_avg"`
	ActualSatisfaction float64 `json:"actual_satisfaction"`
	Count              int     `json:"count"`
	Gap                float64 `json:"gap"`
}

// CalibrationReport is the binned curve plus Expected Calibration Error.
type CalibrationReport struct {
	Bins        []CalibrationBin `json:"bins"`
	TotalPoints int              `json:"total_points"`
	ECE         float64          `json:"ece"`
	Topic       string           `json:"topic,omitempty"`
}

// SatisfactionForRating converts a user rating into a satisfaction value.
func SatisfactionForRating(rating string) float64 {
	switch rating {
	case "helpful", "good", "correct":
		return 1.0
	case "partially_helpful", "ok":
		return 0.5
	case "partially_wrong":
		return 0.2
	case "unhelpful":
		return 0.1
	case "wrong", "bad":
		return 0.0
	default:
		return 0.5
	}
}
