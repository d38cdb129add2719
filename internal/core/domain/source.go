package domain

import "time"

type SourceCategory string

const (
	SourceCategoryLabel     SourceCategory = "label"
	SourceCategorySDS       SourceCategory = "sds"
	SourceCategoryProgram   SourceCategory = "program"
	SourceCategoryReference SourceCategory = "reference"
	SourceCategoryWeb       SourceCategory = "web"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// SourceDescriptor identifies one retrieval source and its health.
type SourceDescriptor struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Category   SourceCategory `json:"category"`
	TrustScore float64        `json:"trust_score"`
}

// BreakerStatus is a consistent snapshot of one source's breaker.
type BreakerStatus struct {
	SourceID            string       `json:"source_id"`
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	TotalTrips          int          `json:"total_trips"`
	LastFailure         time.Time    `json:"last_failure,omitempty"`
	RecoveryAt          time.Time    `json:"recovery_at,omitempty"`
}

// DisplayBadge maps a source category to the citation badge shown to users.
func (c SourceCategory) DisplayBadge() string {
	switch c {
	case SourceCategoryLabel:
		return "Product Label"
	case SourceCategorySDS:
		return "Safety Data Sheet"
	case SourceCategoryProgram:
		return "Spray Program"
	case SourceCategoryWeb:
		return "Web Result"
	default:
		return "Reference"
	}
}
