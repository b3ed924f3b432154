package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/permitkit/permitflow/internal/models"
)

func TestFindStaleSelectsUnpaidPendingBeforeCutoff(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)

	cutoff := time.Now().Add(-24 * time.Hour)
	old := cutoff.Add(-2 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "application_number", "park_id", "permit_id", "location",
		"applicant_name", "organization", "email", "phone", "event_title", "event_date",
		"participants", "application_fee", "permit_fee", "status", "is_paid", "notes",
		"create_time", "change_time",
	}).AddRow(
		11, "APP-2025-0011", 1, nil, nil,
		"Jordan Blake", nil, "jordan@example.com", nil, "Community 5K", nil,
		nil, nil, "35.00", models.ApplicationPending, false, "",
		old, old,
	)

	mock.ExpectQuery(`SELECT .+ FROM applications\s+WHERE status = \? AND is_paid = 0 AND create_time < \?`).
		WithArgs(models.ApplicationPending, cutoff).
		WillReturnRows(rows)

	apps, err := repo.FindStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("FindStale: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("unexpected count: %d", len(apps))
	}
	if apps[0].ApplicationNumber != "APP-2025-0011" {
		t.Fatalf("unexpected application: %+v", apps[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusMissingRowReturnsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = ?, change_time = ? WHERE id = ?`)).
		WithArgs(models.ApplicationApproved, sqlmock.AnyArg(), 42).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateStatus(context.Background(), 42, models.ApplicationApproved); err != ErrNotFound {
		t.Fatalf("UpdateStatus = %v, want ErrNotFound", err)
	}
}
