package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

const defaultAlertCooldown = 15 * time.Minute

type alertRuleFile struct {
	Rules []alertRuleSpec `yaml:"rules"`
}

type alertRuleSpec struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Metric          string  `yaml:"metric"`
	Condition       string  `yaml:"condition"`
	Threshold       float64 `yaml:"threshold"`
	CooldownSeconds int     `yaml:"cooldown_seconds"`
	Enabled         *bool   `yaml:"enabled"`
}

// LoadAlertRules reads threshold alert rules from a YAML file. An empty path
// yields the built-in defaults; a missing or malformed file is an error so a
// typo in ALERT_RULES_PATH cannot silently disable alerting.
func LoadAlertRules(path string) ([]domain.AlertRule, error) {
	if path == "" {
		return DefaultAlertRules(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alert rules: %w", err)
	}

	var file alertRuleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse alert rules: %w", err)
	}

	rules := make([]domain.AlertRule, 0, len(file.Rules))
	for _, spec := range file.Rules {
		if spec.ID == "" || spec.Metric == "" {
			return nil, fmt.Errorf("alert rule missing id or metric: %+v", spec)
		}
		switch domain.AlertCondition(spec.Condition) {
		case domain.ConditionGreaterThan, domain.ConditionLessThan:
		default:
			return nil, fmt.Errorf("alert rule %s: unknown condition %q", spec.ID, spec.Condition)
		}

		cooldown := defaultAlertCooldown
		if spec.CooldownSeconds > 0 {
			cooldown = time.Duration(spec.CooldownSeconds) * time.Second
		}
		enabled := true
		if spec.Enabled != nil {
			enabled = *spec.Enabled
		}
		name := spec.Name
		if name == "" {
			name = spec.ID
		}

		rules = append(rules, domain.AlertRule{
			ID:        spec.ID,
			Name:      name,
			Metric:    spec.Metric,
			Condition: domain.AlertCondition(spec.Condition),
			Threshold: spec.Threshold,
			Cooldown:  cooldown,
			Enabled:   enabled,
		})
	}
	return rules, nil
}

// DefaultAlertRules covers the operational floor when no rules file is
// configured.
func DefaultAlertRules() []domain.AlertRule {
	return []domain.AlertRule{
		{
			ID:        "latency-p95-high",
			Name:      "p95 latency above 10s",
			Metric:    "latency_p95",
			Condition: domain.ConditionGreaterThan,
			Threshold: 10000,
			Cooldown:  defaultAlertCooldown,
			Enabled:   true,
		},
		{
			ID:        "hourly-cost-high",
			Name:      "hourly cost above $1",
			Metric:    "hourly_cost",
			Condition: domain.ConditionGreaterThan,
			Threshold: 1.0,
			Cooldown:  defaultAlertCooldown,
			Enabled:   true,
		},
		{
			ID:        "avg-confidence-low",
			Name:      "average confidence below 50",
			Metric:    "avg_confidence",
			Condition: domain.ConditionLessThan,
			Threshold: 50,
			Cooldown:  defaultAlertCooldown,
			Enabled:   true,
		},
		{
			ID:        "error-rate-high",
			Name:      "pipeline error rate above 10%",
			Metric:    "error_rate",
			Condition: domain.ConditionGreaterThan,
			Threshold: 0.1,
			Cooldown:  defaultAlertCooldown,
			Enabled:   true,
		},
		{
			ID:        "satisfaction-low",
			Name:      "satisfaction rate below 50%",
			Metric:    "satisfaction_rate",
			Condition: domain.ConditionLessThan,
			Threshold: 0.5,
			Cooldown:  defaultAlertCooldown,
			Enabled:   true,
		},
	}
}
