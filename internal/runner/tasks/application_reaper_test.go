package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/repository"
)

type reaperStubRepo struct {
	byID       map[int]*models.Application
	failDelete map[int]bool
}

func (s *reaperStubRepo) Create(_ context.Context, app *models.Application) error { return nil }

func (s *reaperStubRepo) GetByID(_ context.Context, id int) (*models.Application, error) {
	app, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return app, nil
}

func (s *reaperStubRepo) List(_ context.Context) ([]*models.Application, error) { return nil, nil }

func (s *reaperStubRepo) ListByStatus(_ context.Context, status string) ([]*models.Application, error) {
	return nil, nil
}

func (s *reaperStubRepo) UpdateStatus(_ context.Context, id int, status string) error { return nil }

func (s *reaperStubRepo) UpdateNotes(_ context.Context, id int, notes string) error { return nil }

func (s *reaperStubRepo) Update(_ context.Context, app *models.Application) error { return nil }

func (s *reaperStubRepo) Delete(_ context.Context, id int) error {
	if s.failDelete[id] {
		return errors.New("delete failed")
	}
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *reaperStubRepo) FindStale(_ context.Context, cutoff time.Time) ([]*models.Application, error) {
	var stale []*models.Application
	for _, app := range s.byID {
		if app.Status == models.ApplicationPending && !app.IsPaid && app.CreatedAt.Before(cutoff) {
			stale = append(stale, app)
		}
	}
	return stale, nil
}

func TestReaperDeletesOnlyStaleUnpaidPending(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	repo := &reaperStubRepo{byID: map[int]*models.Application{
		1: {ID: 1, Status: models.ApplicationPending, IsPaid: false, CreatedAt: now.Add(-30 * time.Hour)},
		2: {ID: 2, Status: models.ApplicationPending, IsPaid: true, CreatedAt: now.Add(-30 * time.Hour)},
		3: {ID: 3, Status: models.ApplicationApproved, IsPaid: false, CreatedAt: now.Add(-30 * time.Hour)},
		4: {ID: 4, Status: models.ApplicationPending, IsPaid: false, CreatedAt: now.Add(-2 * time.Hour)},
	}}

	task := NewApplicationReaperTask(repo, WithReaperClock(func() time.Time { return now }))
	require.NoError(t, task.Run(context.Background()))

	assert.NotContains(t, repo.byID, 1, "stale unpaid pending must be deleted")
	assert.Contains(t, repo.byID, 2, "paid applications are never reaped")
	assert.Contains(t, repo.byID, 3, "decided applications are never reaped")
	assert.Contains(t, repo.byID, 4, "fresh applications are never reaped")
}

func TestReaperSecondRunFindsNothing(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	repo := &reaperStubRepo{byID: map[int]*models.Application{
		1: {ID: 1, Status: models.ApplicationPending, IsPaid: false, CreatedAt: now.Add(-48 * time.Hour)},
	}}

	task := NewApplicationReaperTask(repo, WithReaperClock(func() time.Time { return now }))
	require.NoError(t, task.Run(context.Background()))
	assert.Empty(t, repo.byID)

	// Idempotent: the second immediate run deletes nothing and still succeeds.
	require.NoError(t, task.Run(context.Background()))
}

func TestReaperContinuesPastFailedDeletes(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	repo := &reaperStubRepo{
		byID: map[int]*models.Application{
			1: {ID: 1, Status: models.ApplicationPending, IsPaid: false, CreatedAt: now.Add(-48 * time.Hour)},
			2: {ID: 2, Status: models.ApplicationPending, IsPaid: false, CreatedAt: now.Add(-48 * time.Hour)},
		},
		failDelete: map[int]bool{1: true},
	}

	task := NewApplicationReaperTask(repo, WithReaperClock(func() time.Time { return now }))
	require.NoError(t, task.Run(context.Background()), "a failed delete must not abort the run")

	assert.Contains(t, repo.byID, 1)
	assert.NotContains(t, repo.byID, 2)
}

func TestReaperSchedule(t *testing.T) {
	task := NewApplicationReaperTask(&reaperStubRepo{}, WithReaperInterval(time.Hour))
	assert.Equal(t, "@every 1h0m0s", task.Schedule())
	assert.True(t, task.RunAtStart())
}
