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

// UserRepository defines user and park-assignment operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id int) error
	AssignedParkIDs(ctx context.Context, userID int) ([]int, error)
	SetParkAssignments(ctx context.Context, userID int, parkIDs []int) error
}

// UserSQLRepository is the SQL implementation of UserRepository.
type UserSQLRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB) *UserSQLRepository {
	return &UserSQLRepository{db: db}
}

const userColumns = `id, login, pw, first_name, last_name, email, role, valid_id, create_time, change_time`

// Create inserts a new user.
func (r *UserSQLRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	query := database.ConvertPlaceholders(`
		INSERT INTO users (login, pw, first_name, last_name, email, role, valid_id, create_time, change_time)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`)

	result, err := r.db.ExecContext(ctx, query,
		user.Login, user.PasswordHash, user.FirstName, user.LastName, user.Email, user.Role, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		user.ID = int(id)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ValidID = 1
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserSQLRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := database.ConvertPlaceholders(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	return &user, nil
}

// GetByLogin retrieves an active user by login name.
func (r *UserSQLRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	query := database.ConvertPlaceholders(`SELECT ` + userColumns + ` FROM users WHERE login = ? AND valid_id = 1`)

	var user models.User
	if err := r.db.GetContext(ctx, &user, query, login); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user %q: %w", login, err)
	}
	return &user, nil
}

// List retrieves all active users ordered by login.
func (r *UserSQLRepository) List(ctx context.Context) ([]*models.User, error) {
	query := database.ConvertPlaceholders(`SELECT ` + userColumns + ` FROM users WHERE valid_id = 1 ORDER BY login`)

	var users []*models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update writes the mutable user fields.
func (r *UserSQLRepository) Update(ctx context.Context, user *models.User) error {
	query := database.ConvertPlaceholders(`
		UPDATE users SET first_name = ?, last_name = ?, email = ?, role = ?, change_time = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Role, time.Now(), user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a user.
func (r *UserSQLRepository) Deactivate(ctx context.Context, id int) error {
	query := database.ConvertPlaceholders(`UPDATE users SET valid_id = 2, change_time = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignedParkIDs returns the park IDs the user is assigned to. This is read
// fresh on every authorization check, never cached.
func (r *UserSQLRepository) AssignedParkIDs(ctx context.Context, userID int) ([]int, error) {
	query := database.ConvertPlaceholders(`SELECT park_id FROM user_parks WHERE user_id = ? ORDER BY park_id`)

	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to query park assignments for user %d: %w", userID, err)
	}
	return ids, nil
}

// SetParkAssignments replaces the user's assignment set with parkIDs.
func (r *UserSQLRepository) SetParkAssignments(ctx context.Context, userID int, parkIDs []int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		database.ConvertPlaceholders(`DELETE FROM user_parks WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("failed to clear park assignments: %w", err)
	}

	insert := database.ConvertPlaceholders(`INSERT INTO user_parks (user_id, park_id) VALUES (?, ?)`)
	for _, parkID := range parkIDs {
		if _, err = tx.ExecContext(ctx, insert, userID, parkID); err != nil {
			return fmt.Errorf("failed to assign park %d: %w", parkID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit park assignments: %w", err)
	}
	return nil
}
