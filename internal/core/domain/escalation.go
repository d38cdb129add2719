package domain

import "time"

type FailureMode string

const (
	FailureHallucination       FailureMode = "hallucination"
	FailureSafetyConcern       FailureMode = "safety_concern"
	FailureLowConfidence       FailureMode = "low_confidence"
	FailurePredictedNegative   FailureMode = "predicted_negative"
	FailureInsufficientSources FailureMode = "insufficient_sources"
	FailureWrongCategory       FailureMode = "wrong_category"
	FailureOutdatedInfo        FailureMode = "outdated_info"
	FailureOffTopic            FailureMode = "off_topic"
)

// BasePriority orders failure modes by severity, 1–10.
func (m FailureMode) BasePriority() int {
	switch m {
	case FailureSafetyConcern:
		return 10
	case FailureHallucination:
		return 9
	case FailureInsufficientSources, FailurePredictedNegative:
		return 7
	case FailureLowConfidence:
		return 6
	case FailureWrongCategory:
		return 5
	case FailureOutdatedInfo:
		return 4
	case FailureOffTopic:
		return 3
	default:
		return 5
	}
}

type EscalationStatus string

const (
	EscalationOpen     EscalationStatus = "open"
	EscalationResolved EscalationStatus = "resolved"
)

type ResolutionAction string

const (
	ResolutionDismiss        ResolutionAction = "dismiss"
	ResolutionApproveWithFix ResolutionAction = "approve_with_fix"
	ResolutionPromoteGolden  ResolutionAction = "promote_to_golden"
)

// Escalation is a flagged question/answer pair queued for human review.
// Created open; mutated only through Resolve.
type Escalation struct {
	ID             string           `json:"id"`
	Question       string           `json:"question"`
	Answer         string           `json:"answer"`
	FailureMode    FailureMode      `json:"failure_mode"`
	FailureDetails string           `json:"failure_details,omitempty"`
	Confidence     float64          `json:"confidence"`
	Priority       int              `json:"priority"`
	Status         EscalationStatus `json:"status"`
	SuggestedFix   string           `json:"suggested_fix,omitempty"`
	ResolvedBy     string           `json:"resolved_by,omitempty"`
	Resolution     ResolutionAction `json:"resolution,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
}

// EscalationStats summarizes the review queue.
type EscalationStats struct {
	OpenCount     int                 `json:"open_count"`
	ResolvedCount int                 `json:"resolved_count"`
	ByFailureMode map[FailureMode]int `json:"by_failure_mode"`
}
