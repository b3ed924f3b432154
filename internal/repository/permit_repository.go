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

// PermitRepository defines permit and template operations.
type PermitRepository interface {
	Create(ctx context.Context, permit *models.Permit) error
	GetByID(ctx context.Context, id int) (*models.Permit, error)
	List(ctx context.Context, templatesOnly bool) ([]*models.Permit, error)
	Update(ctx context.Context, permit *models.Permit) error
	Delete(ctx context.Context, id int) error
}

// PermitSQLRepository is the SQL implementation of PermitRepository.
type PermitSQLRepository struct {
	db *sqlx.DB
}

// NewPermitRepository creates a new permit repository.
func NewPermitRepository(db *sqlx.DB) *PermitSQLRepository {
	return &PermitSQLRepository{db: db}
}

const permitColumns = `id, park_id, permit_number, name, application_fee, permit_fee,
	refundable_deposit, participant_cap, insurance_required, is_template, valid_id,
	create_time, change_time`

// Create inserts a new permit. PermitNumber must already be assigned by the
// sequence generator.
func (r *PermitSQLRepository) Create(ctx context.Context, permit *models.Permit) error {
	now := time.Now()
	query := database.ConvertPlaceholders(`
		INSERT INTO permits (park_id, permit_number, name, application_fee, permit_fee,
			refundable_deposit, participant_cap, insurance_required, is_template, valid_id,
			create_time, change_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`)

	result, err := r.db.ExecContext(ctx, query,
		permit.ParkID, permit.PermitNumber, permit.Name,
		permit.ApplicationFee, permit.PermitFee, permit.RefundableDeposit,
		permit.ParticipantCap, permit.InsuranceRequired, permit.IsTemplate, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert permit: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		permit.ID = int(id)
	}
	permit.CreatedAt = now
	permit.UpdatedAt = now
	permit.ValidID = 1
	return nil
}

// GetByID retrieves a permit by ID.
func (r *PermitSQLRepository) GetByID(ctx context.Context, id int) (*models.Permit, error) {
	query := database.ConvertPlaceholders(`SELECT ` + permitColumns + ` FROM permits WHERE id = ?`)

	var permit models.Permit
	if err := r.db.GetContext(ctx, &permit, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query permit %d: %w", id, err)
	}
	return &permit, nil
}

// List retrieves active permits, optionally only templates.
func (r *PermitSQLRepository) List(ctx context.Context, templatesOnly bool) ([]*models.Permit, error) {
	query := `SELECT ` + permitColumns + ` FROM permits WHERE valid_id = 1`
	if templatesOnly {
		query += ` AND is_template = 1`
	}
	query += ` ORDER BY permit_number`

	var permits []*models.Permit
	if err := r.db.SelectContext(ctx, &permits, database.ConvertPlaceholders(query)); err != nil {
		return nil, fmt.Errorf("failed to list permits: %w", err)
	}
	return permits, nil
}

// Update writes the mutable permit fields.
func (r *PermitSQLRepository) Update(ctx context.Context, permit *models.Permit) error {
	query := database.ConvertPlaceholders(`
		UPDATE permits SET name = ?, application_fee = ?, permit_fee = ?,
			refundable_deposit = ?, participant_cap = ?, insurance_required = ?, change_time = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		permit.Name, permit.ApplicationFee, permit.PermitFee, permit.RefundableDeposit,
		permit.ParticipantCap, permit.InsuranceRequired, time.Now(), permit.ID)
	if err != nil {
		return fmt.Errorf("failed to update permit %d: %w", permit.ID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a permit.
func (r *PermitSQLRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		database.ConvertPlaceholders(`DELETE FROM permits WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete permit %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
