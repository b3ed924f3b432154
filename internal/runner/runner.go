// Package runner schedules background tasks on a cron timetable.
package runner

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/permitkit/permitflow/internal/cache"
)

// Task is one schedulable background job.
type Task interface {
	// Name identifies the task in logs and status records.
	Name() string
	// Schedule is a cron expression or @every descriptor.
	Schedule() string
	// Timeout bounds a single run.
	Timeout() time.Duration
	// Run executes the task.
	Run(ctx context.Context) error
	// RunAtStart reports whether the task should run once immediately when
	// the runner starts, before its first scheduled firing.
	RunAtStart() bool
}

// Runner owns the cron scheduler and the registered tasks.
type Runner struct {
	cron   *cron.Cron
	tasks  []Task
	logger *log.Logger
	status *cache.RedisCache
}

// Option configures the runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithStatusCache persists per-task run status to redis. A nil cache is fine.
func WithStatusCache(c *cache.RedisCache) Option {
	return func(r *Runner) { r.status = c }
}

// New creates a runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		cron:   cron.New(),
		logger: log.New(log.Writer(), "[RUNNER] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a task to the timetable.
func (r *Runner) Register(task Task) error {
	if _, err := r.cron.AddFunc(task.Schedule(), func() { r.execute(task) }); err != nil {
		return err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

// Start launches the scheduler and fires the run-at-start tasks once in the
// background. The returned channel closes when the initial passes finish,
// which the admission queue uses to flip to ready.
func (r *Runner) Start() <-chan struct{} {
	warmed := make(chan struct{})
	go func() {
		defer close(warmed)
		for _, task := range r.tasks {
			if task.RunAtStart() {
				r.execute(task)
			}
		}
	}()
	r.cron.Start()
	return warmed
}

// Stop halts the scheduler. Running tasks finish on their own.
func (r *Runner) Stop() {
	r.cron.Stop()
}

func (r *Runner) execute(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), task.Timeout())
	defer cancel()

	started := time.Now()
	err := task.Run(ctx)

	status := cache.TaskStatus{LastRun: started, Success: err == nil}
	if err != nil {
		status.Message = err.Error()
		r.logger.Printf("task %s failed after %v: %v", task.Name(), time.Since(started), err)
	}
	if cacheErr := r.status.SetTaskStatus(ctx, task.Name(), status); cacheErr != nil {
		r.logger.Printf("failed to persist status for %s: %v", task.Name(), cacheErr)
	}
}
