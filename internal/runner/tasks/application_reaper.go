// Package tasks provides background task implementations for the runner.
package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/permitkit/permitflow/internal/repository"
)

// Defaults if not configured.
const (
	defaultReaperInterval = time.Hour
	defaultReaperMaxAge   = 24 * time.Hour
)

var (
	reaperRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "reaper",
		Name:      "runs_total",
		Help:      "Total stale application reaper executions",
	})
	reaperDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "reaper",
		Name:      "deleted_total",
		Help:      "Stale applications deleted by the reaper",
	})
	reaperFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "reaper",
		Name:      "delete_failures_total",
		Help:      "Individual deletes that failed during reaper runs",
	})
)

// ApplicationReaperTask deletes unpaid pending applications that have sat
// untouched past the maximum age. Best effort: a failed delete is logged and
// skipped, never retried within the run.
type ApplicationReaperTask struct {
	apps     repository.ApplicationRepository
	interval time.Duration
	maxAge   time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// ReaperOption configures the task.
type ReaperOption func(*ApplicationReaperTask)

// WithReaperInterval overrides the run interval.
func WithReaperInterval(d time.Duration) ReaperOption {
	return func(t *ApplicationReaperTask) { t.interval = d }
}

// WithReaperMaxAge overrides the stale cutoff age.
func WithReaperMaxAge(d time.Duration) ReaperOption {
	return func(t *ApplicationReaperTask) { t.maxAge = d }
}

// WithReaperClock overrides the time source. Used by tests.
func WithReaperClock(now func() time.Time) ReaperOption {
	return func(t *ApplicationReaperTask) { t.now = now }
}

// WithReaperLogger sets a custom logger.
func WithReaperLogger(l *log.Logger) ReaperOption {
	return func(t *ApplicationReaperTask) { t.logger = l }
}

// NewApplicationReaperTask creates the reaper over the given repository.
func NewApplicationReaperTask(apps repository.ApplicationRepository, opts ...ReaperOption) *ApplicationReaperTask {
	t := &ApplicationReaperTask{
		apps:     apps,
		interval: defaultReaperInterval,
		maxAge:   defaultReaperMaxAge,
		logger:   log.New(log.Writer(), "[APP-REAPER] ", log.LstdFlags),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task name.
func (t *ApplicationReaperTask) Name() string {
	return "application-reaper"
}

// Schedule returns the cron descriptor for the configured interval.
func (t *ApplicationReaperTask) Schedule() string {
	return fmt.Sprintf("@every %s", t.interval)
}

// Timeout returns the task timeout.
func (t *ApplicationReaperTask) Timeout() time.Duration {
	return 5 * time.Minute
}

// RunAtStart runs one pass immediately when the process starts.
func (t *ApplicationReaperTask) RunAtStart() bool {
	return true
}

// Run deletes stale unpaid pending applications.
func (t *ApplicationReaperTask) Run(ctx context.Context) error {
	reaperRuns.Inc()

	cutoff := t.now().Add(-t.maxAge)
	stale, err := t.apps.FindStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to find stale applications: %w", err)
	}
	if len(stale) == 0 {
		t.logger.Println("no stale applications to delete")
		return nil
	}

	deleted := 0
	for _, app := range stale {
		if err := t.apps.Delete(ctx, app.ID); err != nil {
			reaperFailures.Inc()
			t.logger.Printf("failed to delete application %s: %v", app.ApplicationNumber, err)
			continue
		}
		deleted++
	}
	reaperDeleted.Add(float64(deleted))
	t.logger.Printf("deleted %d of %d stale applications", deleted, len(stale))
	return nil
}
