package domain

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AnomalyEvent is one statistical detection over a pipeline metric.
type AnomalyEvent struct {
	ID           string    `json:"id"`
	Metric       string    `json:"metric"`
	Method       string    `json:"method"`
	CurrentValue float64   `json:"current_value"`
	BaselineMean float64   `json:"baseline_mean"`
	BaselineStd  float64   `json:"baseline_std"`
	ZScore       float64   `json:"z_score"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	DetectedAt   time.Time `json:"detected_at"`
}

type AlertCondition string

const (
	ConditionGreaterThan AlertCondition = "gt"
	ConditionLessThan    AlertCondition = "lt"
)

// AlertRule is configuration: fire when a metric crosses a threshold.
type AlertRule struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metric    string         `json:"metric"`
	Condition AlertCondition `json:"condition"`
	Threshold float64        `json:"threshold"`
	Cooldown  time.Duration  `json:"cooldown"`
	Enabled   bool           `json:"enabled"`
	FireCount int            `json:"fire_count"`
	LastFired *time.Time     `json:"last_fired,omitempty"`
}

// Triggered reports whether value crosses the rule threshold.
func (r AlertRule) Triggered(value float64) bool {
	switch r.Condition {
	case ConditionGreaterThan:
		return value > r.Threshold
	case ConditionLessThan:
		return value < r.Threshold
	default:
		return false
	}
}

// PipelineEvent is the per-request observation published to the event bus
// and consumed off the critical path by the anomaly monitor.
type PipelineEvent struct {
	RequestID     string    `json:"request_id"`
	Topic         string    `json:"topic,omitempty"`
	LatencyMillis float64   `json:"latency_ms"`
	CostUSD       float64   `json:"cost_usd"`
	Confidence    float64   `json:"confidence"`
	SourceCount   int       `json:"source_count"`
	WebSearchUsed bool      `json:"web_search_used"`
	PipelineError bool      `json:"pipeline_error"`
	Timestamp     time.Time `json:"timestamp"`
}
