package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/permitkit/permitflow/internal/database"
	"github.com/permitkit/permitflow/internal/models"
)

// ApplicationRepository defines application operations.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id int) (*models.Application, error)
	List(ctx context.Context) ([]*models.Application, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Application, error)
	UpdateStatus(ctx context.Context, id int, status string) error
	UpdateNotes(ctx context.Context, id int, notes string) error
	Update(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, id int) error
	FindStale(ctx context.Context, cutoff time.Time) ([]*models.Application, error)
}

// ApplicationSQLRepository is the SQL implementation of ApplicationRepository.
type ApplicationSQLRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository creates a new application repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationSQLRepository {
	return &ApplicationSQLRepository{db: db}
}

const applicationColumns = `id, application_number, park_id, permit_id, location,
	applicant_name, organization, email, phone, event_title, event_date, participants,
	application_fee, permit_fee, status, is_paid, notes, create_time, change_time`

// Create inserts a new application. ApplicationNumber must already be assigned
// by the sequence generator; status starts pending.
func (r *ApplicationSQLRepository) Create(ctx context.Context, app *models.Application) error {
	now := time.Now()
	query := database.ConvertPlaceholders(`
		INSERT INTO applications (application_number, park_id, permit_id, location,
			applicant_name, organization, email, phone, event_title, event_date, participants,
			application_fee, permit_fee, status, is_paid, notes, create_time, change_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	result, err := r.db.ExecContext(ctx, query,
		app.ApplicationNumber, app.ParkID, app.PermitID, app.Location,
		app.ApplicantName, app.Organization, app.Email, app.Phone,
		app.EventTitle, app.EventDate, app.Participants,
		app.ApplicationFee, app.PermitFee, models.ApplicationPending, app.IsPaid, app.Notes, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		app.ID = int(id)
	}
	app.Status = models.ApplicationPending
	app.CreatedAt = now
	app.UpdatedAt = now
	return nil
}

// GetByID retrieves an application by ID.
func (r *ApplicationSQLRepository) GetByID(ctx context.Context, id int) (*models.Application, error) {
	query := database.ConvertPlaceholders(`SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`)

	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query application %d: %w", id, err)
	}
	return &app, nil
}

// List retrieves all applications, newest first.
func (r *ApplicationSQLRepository) List(ctx context.Context) ([]*models.Application, error) {
	query := database.ConvertPlaceholders(`SELECT ` + applicationColumns + ` FROM applications ORDER BY create_time DESC`)

	var apps []*models.Application
	if err := r.db.SelectContext(ctx, &apps, query); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// ListByStatus retrieves applications with the given status, newest first.
func (r *ApplicationSQLRepository) ListByStatus(ctx context.Context, status string) ([]*models.Application, error) {
	query := database.ConvertPlaceholders(`SELECT ` + applicationColumns + ` FROM applications WHERE status = ? ORDER BY create_time DESC`)

	var apps []*models.Application
	if err := r.db.SelectContext(ctx, &apps, query, status); err != nil {
		return nil, fmt.Errorf("failed to list applications by status %q: %w", status, err)
	}
	return apps, nil
}

// UpdateStatus flips the status of an application.
func (r *ApplicationSQLRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	query := database.ConvertPlaceholders(`UPDATE applications SET status = ?, change_time = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update application %d status: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateNotes replaces the stored notes body. Callers append; the repository
// never edits the existing text.
func (r *ApplicationSQLRepository) UpdateNotes(ctx context.Context, id int, notes string) error {
	query := database.ConvertPlaceholders(`UPDATE applications SET notes = ?, change_time = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, notes, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update application %d notes: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Update writes the editable application fields (event details and fees).
func (r *ApplicationSQLRepository) Update(ctx context.Context, app *models.Application) error {
	query := database.ConvertPlaceholders(`
		UPDATE applications SET location = ?, applicant_name = ?, organization = ?,
			email = ?, phone = ?, event_title = ?, event_date = ?, participants = ?,
			application_fee = ?, permit_fee = ?, is_paid = ?, change_time = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		app.Location, app.ApplicantName, app.Organization, app.Email, app.Phone,
		app.EventTitle, app.EventDate, app.Participants,
		app.ApplicationFee, app.PermitFee, app.IsPaid, time.Now(), app.ID)
	if err != nil {
		return fmt.Errorf("failed to update application %d: %w", app.ID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an application.
func (r *ApplicationSQLRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		database.ConvertPlaceholders(`DELETE FROM applications WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete application %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindStale returns unpaid pending applications created before cutoff. Used by
// the reaper.
func (r *ApplicationSQLRepository) FindStale(ctx context.Context, cutoff time.Time) ([]*models.Application, error) {
	query := database.ConvertPlaceholders(`
		SELECT ` + applicationColumns + ` FROM applications
		WHERE status = ? AND is_paid = 0 AND create_time < ?
		ORDER BY create_time`)

	var apps []*models.Application
	if err := r.db.SelectContext(ctx, &apps, query, models.ApplicationPending, cutoff); err != nil {
		return nil, fmt.Errorf("failed to query stale applications: %w", err)
	}
	return apps, nil
}
