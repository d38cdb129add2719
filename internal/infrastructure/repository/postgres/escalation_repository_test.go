package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

func TestEscalationRepositoryListOpenOrdersByPriority(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewEscalationRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "question", "answer", "failure_mode", "failure_details", "confidence",
		"priority", "status", "suggested_fix", "resolved_by", "resolution", "created_at", "resolved_at",
	}).
		AddRow("e-1", "q", "a", string(domain.FailureHallucination), nil, 62.0,
			9, string(domain.EscalationOpen), nil, nil, nil, time.Now(), nil).
		AddRow("e-2", "q2", "a2", string(domain.FailureLowConfidence), "weak evidence", 41.5,
			6, string(domain.EscalationOpen), nil, nil, nil, time.Now(), nil)

	mock.ExpectQuery("FROM escalations").
		WithArgs(20).
		WillReturnRows(rows)

	items, err := repo.ListOpen(context.Background(), 20)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 escalations, got %d", len(items))
	}
	if items[0].FailureMode != domain.FailureHallucination {
		t.Fatalf("expected hallucination first, got %s", items[0].FailureMode)
	}
	if items[1].FailureDetails != "weak evidence" {
		t.Fatalf("expected details to survive null scan, got %q", items[1].FailureDetails)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEscalationRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewEscalationRepository(db)
	mock.ExpectQuery("FROM escalations").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEscalationRepositoryResolveReturnsClosedWhenNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewEscalationRepository(db)
	mock.ExpectExec("UPDATE escalations").
		WithArgs("e-1", "agronomist", string(domain.ResolutionDismiss), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Resolve(context.Background(), "e-1", "agronomist", domain.ResolutionDismiss, "")
	if !errors.Is(err, domain.ErrEscalationClosed) {
		t.Fatalf("expected ErrEscalationClosed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEscalationRepositoryStatsSplitsOpenAndResolved(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewEscalationRepository(db)
	rows := sqlmock.NewRows([]string{"status", "failure_mode", "count"}).
		AddRow(string(domain.EscalationOpen), string(domain.FailureHallucination), 3).
		AddRow(string(domain.EscalationResolved), string(domain.FailureHallucination), 2).
		AddRow(string(domain.EscalationOpen), string(domain.FailureLowConfidence), 1)

	mock.ExpectQuery("FROM escalations").WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.OpenCount != 4 {
		t.Fatalf("expected 4 open, got %d", stats.OpenCount)
	}
	if stats.ResolvedCount != 2 {
		t.Fatalf("expected 2 resolved, got %d", stats.ResolvedCount)
	}
	if stats.ByFailureMode[domain.FailureHallucination] != 5 {
		t.Fatalf("expected 5 hallucination total, got %d", stats.ByFailureMode[domain.FailureHallucination])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
