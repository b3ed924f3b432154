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

// ParkRepository defines park operations.
type ParkRepository interface {
	Create(ctx context.Context, park *models.Park) error
	GetByID(ctx context.Context, id int) (*models.Park, error)
	List(ctx context.Context) ([]*models.Park, error)
	Update(ctx context.Context, park *models.Park) error
	Delete(ctx context.Context, id int) error
}

// ParkSQLRepository is the SQL implementation of ParkRepository.
type ParkSQLRepository struct {
	db *sqlx.DB
}

// NewParkRepository creates a new park repository.
func NewParkRepository(db *sqlx.DB) *ParkSQLRepository {
	return &ParkSQLRepository{db: db}
}

const parkColumns = `id, name, locations, waiver, valid_id, create_time, change_time`

// Create inserts a new park.
func (r *ParkSQLRepository) Create(ctx context.Context, park *models.Park) error {
	now := time.Now()
	query := database.ConvertPlaceholders(`
		INSERT INTO parks (name, locations, waiver, valid_id, create_time, change_time)
		VALUES (?, ?, ?, 1, ?, ?)`)

	result, err := r.db.ExecContext(ctx, query, park.Name, park.Locations, park.Waiver, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert park: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		park.ID = int(id)
	}
	park.CreatedAt = now
	park.UpdatedAt = now
	park.ValidID = 1
	return nil
}

// GetByID retrieves a park by ID.
func (r *ParkSQLRepository) GetByID(ctx context.Context, id int) (*models.Park, error) {
	query := database.ConvertPlaceholders(`SELECT ` + parkColumns + ` FROM parks WHERE id = ?`)

	var park models.Park
	if err := r.db.GetContext(ctx, &park, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query park %d: %w", id, err)
	}
	return &park, nil
}

// List retrieves all active parks ordered by name.
func (r *ParkSQLRepository) List(ctx context.Context) ([]*models.Park, error) {
	query := database.ConvertPlaceholders(`SELECT ` + parkColumns + ` FROM parks WHERE valid_id = 1 ORDER BY name`)

	var parks []*models.Park
	if err := r.db.SelectContext(ctx, &parks, query); err != nil {
		return nil, fmt.Errorf("failed to list parks: %w", err)
	}
	return parks, nil
}

// Update writes the mutable park fields.
func (r *ParkSQLRepository) Update(ctx context.Context, park *models.Park) error {
	query := database.ConvertPlaceholders(`
		UPDATE parks SET name = ?, locations = ?, waiver = ?, change_time = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, park.Name, park.Locations, park.Waiver, time.Now(), park.ID)
	if err != nil {
		return fmt.Errorf("failed to update park %d: %w", park.ID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a park. The delete is rejected with ErrParkInUse while any
// permit still references the park.
func (r *ParkSQLRepository) Delete(ctx context.Context, id int) error {
	var permits int
	countQuery := database.ConvertPlaceholders(`SELECT COUNT(*) FROM permits WHERE park_id = ?`)
	if err := r.db.GetContext(ctx, &permits, countQuery, id); err != nil {
		return fmt.Errorf("failed to count permits for park %d: %w", id, err)
	}
	if permits > 0 {
		return ErrParkInUse
	}

	result, err := r.db.ExecContext(ctx,
		database.ConvertPlaceholders(`DELETE FROM parks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete park %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
