// Package access enforces park-scoped visibility. Parks are the scoping unit:
// a non-admin user sees only records belonging to parks they are assigned to,
// looked up fresh on every check so revoked assignments take effect
// immediately.
package access

import (
	"context"
	"fmt"

	"github.com/permitkit/permitflow/internal/models"
)

// AssignmentSource looks up park assignments for a user. Implemented by
// repository.UserRepository.
type AssignmentSource interface {
	AssignedParkIDs(ctx context.Context, userID int) ([]int, error)
}

// Service answers park-scope questions for users.
type Service struct {
	assignments AssignmentSource
}

// NewService creates an access service backed by the given assignment source.
func NewService(assignments AssignmentSource) *Service {
	return &Service{assignments: assignments}
}

// HasAccess reports whether user may act on records belonging to parkID.
// Admins always may; everyone else needs an assignment row.
func (s *Service) HasAccess(ctx context.Context, user *models.User, parkID int) (bool, error) {
	if user.IsAdmin() {
		return true, nil
	}
	ids, err := s.assignments.AssignedParkIDs(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load park assignments: %w", err)
	}
	for _, id := range ids {
		if id == parkID {
			return true, nil
		}
	}
	return false, nil
}

// CanReadAll reports whether user may read listings across every park.
// Managers get read-everything; only admins get it for mutations.
func CanReadAll(user *models.User) bool {
	return user.Role == models.RoleAdmin || user.Role == models.RoleManager
}

// Filter returns the subset of records visible to user. Admins get the input
// back unchanged. For everyone else the assigned-park set is computed once and
// records whose park is outside it are dropped; a user with no assignments
// gets an empty result regardless of input.
func Filter[T any](ctx context.Context, s *Service, user *models.User, records []T, parkIDOf func(T) int) ([]T, error) {
	if user.IsAdmin() {
		return records, nil
	}

	ids, err := s.assignments.AssignedParkIDs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load park assignments: %w", err)
	}

	assigned := make(map[int]bool, len(ids))
	for _, id := range ids {
		assigned[id] = true
	}

	filtered := make([]T, 0, len(records))
	for _, rec := range records {
		if assigned[parkIDOf(rec)] {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}
