package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	maxWindowPoints  = 1000
	minBaselineCount = 10
	zScoreThreshold  = 2.5
	zScoreWarning    = 3.0
	zScoreCritical   = 4.0
)

type metricPoint struct {
	value float64
	at    time.Time
}

type metricWindow struct {
	points []metricPoint
}

func (w *metricWindow) add(value float64, at time.Time) {
	w.points = append(w.points, metricPoint{value: value, at: at})
	if len(w.points) > maxWindowPoints {
		w.points = w.points[len(w.points)-maxWindowPoints:]
	}
}

func (w *metricWindow) since(cutoff time.Time) []float64 {
	var out []float64
	for _, p := range w.points {
		if p.at.After(cutoff) {
			out = append(out, p.value)
		}
	}
	return out
}

// AnomalyMonitor ingests pipeline events off the request path and detects
// statistical drift against trailing baselines. One mutex guards the
// windows; sweeps snapshot under the lock and compute outside hot paths.
type AnomalyMonitor struct {
	store  ports.AnomalyStore
	notify AlertNotifier

	mu      sync.Mutex
	windows map[string]*metricWindow
	errors  int
	total   int
}

// AlertNotifier is called after an alert rule fires and its fire has been
// persisted. Optional.
type AlertNotifier func(rule domain.AlertRule, value float64)

func (m *AnomalyMonitor) SetAlertNotifier(fn AlertNotifier) {
	m.notify = fn
}

func NewAnomalyMonitor(store ports.AnomalyStore) *AnomalyMonitor {
	return &AnomalyMonitor{
		store:   store,
		windows: make(map[string]*metricWindow),
	}
}

// Observe records one pipeline event into the rolling windows.
func (m *AnomalyMonitor) Observe(event domain.PipelineEvent) {
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.window("latency_ms").add(event.LatencyMillis, at)
	m.window("cost_per_request").add(event.CostUSD, at)
	m.window("confidence").add(event.Confidence, at)
	m.total++
	if event.PipelineError {
		m.errors++
	}
}

func (m *AnomalyMonitor) window(metric string) *metricWindow {
	w, ok := m.windows[metric]
	if !ok {
		w = &metricWindow{}
		m.windows[metric] = w
	}
	return w
}

// Sweep runs all detections over the recent window, persists events, and
// evaluates alert rules. Called on the worker's schedule, never inline.
func (m *AnomalyMonitor) Sweep(ctx context.Context) ([]domain.AnomalyEvent, error) {
	now := time.Now()
	recentCutoff := now.Add(-15 * time.Minute)
	baselineCutoff := now.Add(-24 * time.Hour)

	m.mu.Lock()
	metrics := make(map[string]struct{ recent, baseline []float64 }, len(m.windows))
	for name, w := range m.windows {
		metrics[name] = struct{ recent, baseline []float64 }{
			recent:   w.since(recentCutoff),
			baseline: w.since(baselineCutoff),
		}
	}
	errorRate := 0.0
	if m.total > 0 {
		errorRate = float64(m.errors) / float64(m.total)
	}
	m.mu.Unlock()

	var events []domain.AnomalyEvent
	current := map[string]float64{"error_rate": errorRate}

	for name, series := range metrics {
		if len(series.recent) == 0 {
			continue
		}
		recentMean := mean(series.recent)
		current[name] = recentMean
		if name == "latency_ms" {
			current["latency_p95"] = percentile(series.recent, 0.95)
		}
		if name == "confidence" {
			current["avg_confidence"] = recentMean
		}

		if len(series.baseline) < minBaselineCount {
			continue
		}
		baseMean := mean(series.baseline)
		baseStd := stddev(series.baseline, baseMean)
		if baseStd < 0.001 {
			continue
		}

		z := math.Abs(recentMean-baseMean) / baseStd
		if z <= zScoreThreshold {
			continue
		}
		events = append(events, domain.AnomalyEvent{
			ID:           uuid.NewString(),
			Metric:       name,
			Method:       "zscore",
			CurrentValue: recentMean,
			BaselineMean: baseMean,
			BaselineStd:  baseStd,
			ZScore:       math.Round(z*100) / 100,
			Severity:     severityForZ(z),
			Message:      fmt.Sprintf("%s is %.1f sigma from baseline (%.2f vs %.2f)", name, z, recentMean, baseMean),
			DetectedAt:   now,
		})
	}

	for _, event := range events {
		if err := m.store.SaveEvent(ctx, event); err != nil {
			slog.Warn("anomaly_persist_failed", "metric", event.Metric, "error", err)
		}
	}
	if len(events) > 0 {
		slog.Warn("anomalies_detected", "count", len(events))
	}

	if err := m.evaluateRules(ctx, current, now); err != nil {
		slog.Warn("alert_rule_evaluation_failed", "error", err)
	}
	return events, nil
}

// evaluateRules fires configured alert rules against current metric values,
// honoring per-rule cooldowns.
func (m *AnomalyMonitor) evaluateRules(ctx context.Context, current map[string]float64, now time.Time) error {
	rules, err := m.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list alert rules: %w", err)
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		value, ok := current[rule.Metric]
		if !ok {
			continue
		}
		if rule.LastFired != nil && now.Sub(*rule.LastFired) < rule.Cooldown {
			continue
		}
		if !rule.Triggered(value) {
			continue
		}

		if err := m.store.MarkRuleFired(ctx, rule.ID, now); err != nil {
			slog.Warn("alert_fire_persist_failed", "rule", rule.Name, "error", err)
			continue
		}
		slog.Warn("alert_fired",
			"rule", rule.Name,
			"metric", rule.Metric,
			"value", value,
			"threshold", rule.Threshold,
		)
		if m.notify != nil {
			m.notify(rule, value)
		}
	}
	return nil
}

func (m *AnomalyMonitor) Recent(ctx context.Context, limit int) ([]domain.AnomalyEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.store.ListRecent(ctx, limit)
}

func (m *AnomalyMonitor) Acknowledge(ctx context.Context, id string) error {
	return m.store.Acknowledge(ctx, id)
}

func (m *AnomalyMonitor) Rules(ctx context.Context) ([]domain.AlertRule, error) {
	return m.store.ListRules(ctx)
}

func severityForZ(z float64) domain.Severity {
	switch {
	case z > zScoreCritical:
		return domain.SeverityCritical
	case z > zScoreWarning:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
