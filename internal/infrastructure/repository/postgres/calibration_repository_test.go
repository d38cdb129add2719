package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

func TestCalibrationRepositoryAppendPointFillsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewCalibrationRepository(db)
	mock.ExpectExec("INSERT INTO calibration_points").
		WithArgs(sqlmock.AnyArg(), 82.5, "helpful", 1.0, "disease", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.AppendPoint(context.Background(), domain.CalibrationPoint{
		PredictedConfidence: 82.5,
		Rating:              "helpful",
		ActualSatisfaction:  1.0,
		Topic:               "disease",
	})
	if err != nil {
		t.Fatalf("AppendPoint() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCalibrationRepositoryListPointsFiltersByTopic(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewCalibrationRepository(db)
	rows := sqlmock.NewRows([]string{"id", "predicted_confidence", "rating", "actual_satisfaction", "topic", "created_at"}).
		AddRow("p-1", 70.0, "ok", 0.5, "weed", time.Now()).
		AddRow("p-2", 48.0, "wrong", 0.0, nil, time.Now())

	mock.ExpectQuery("FROM calibration_points").
		WithArgs("weed").
		WillReturnRows(rows)

	points, err := repo.ListPoints(context.Background(), "weed", 100)
	if err != nil {
		t.Fatalf("ListPoints() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[1].Topic != "" {
		t.Fatalf("expected empty topic for null column, got %q", points[1].Topic)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCalibrationRepositoryCountPoints(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewCalibrationRepository(db)
	mock.ExpectQuery("FROM calibration_points").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(57))

	count, err := repo.CountPoints(context.Background())
	if err != nil {
		t.Fatalf("CountPoints() error = %v", err)
	}
	if count != 57 {
		t.Fatalf("expected 57, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAnomalyRepositoryAcknowledgeReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewAnomalyRepository(db)
	mock.ExpectExec("UPDATE anomaly_events").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Acknowledge(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAnomalyRepositoryListRulesRestoresCooldown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewAnomalyRepository(db)
	fired := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "name", "metric", "condition", "threshold", "cooldown_seconds", "enabled", "fire_count", "last_fired"}).
		AddRow("r-1", "high latency", "latency_p95", string(domain.ConditionGreaterThan), 10000.0, int64(900), true, 4, fired).
		AddRow("r-2", "low confidence", "avg_confidence", string(domain.ConditionLessThan), 50.0, int64(1800), false, 0, nil)

	mock.ExpectQuery("FROM alert_rules").WillReturnRows(rows)

	rules, err := repo.ListRules(context.Background())
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Cooldown != 15*time.Minute {
		t.Fatalf("expected 15m cooldown, got %v", rules[0].Cooldown)
	}
	if rules[0].LastFired == nil {
		t.Fatalf("expected last fired to be set")
	}
	if rules[1].LastFired != nil {
		t.Fatalf("expected nil last fired for never-fired rule")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
