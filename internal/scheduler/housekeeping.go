// Package scheduler runs periodic housekeeping: returning overdue borrows
// and pruning the audit trail.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/tasks"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Auditor records housekeeping runs.
type Auditor interface {
	LogHousekeeping(action, description string, err error)
}

// Options configures a HousekeepingScheduler. Empty schedules disable the
// matching job.
type Options struct {
	SweepSchedule      string
	AuditSchedule      string
	AuditRetentionDays int
}

// HousekeepingScheduler fires the overdue sweep and audit cleanup on cron
// schedules. Jobs go through the task queue when one is configured.
type HousekeepingScheduler struct {
	opts    Options
	sweeper tasks.Sweeper
	cleaner tasks.AuditEventCleaner
	queue   *tasks.Client
	audit   Auditor
	log     *zap.Logger

	cron      *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.RWMutex
	isRunning bool
}

// NewHousekeepingScheduler creates a scheduler. queue and auditor may be nil.
func NewHousekeepingScheduler(opts Options, sweeper tasks.Sweeper, cleaner tasks.AuditEventCleaner, queue *tasks.Client, auditor Auditor, log *zap.Logger) *HousekeepingScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HousekeepingScheduler{
		opts:    opts,
		sweeper: sweeper,
		cleaner: cleaner,
		queue:   queue,
		audit:   auditor,
		log:     log.Named("scheduler"),
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers the jobs and starts the cron runner. It stops when ctx is
// cancelled.
func (s *HousekeepingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{"sweep_overdue", s.opts.SweepSchedule, s.sweepOverdue},
		{"cleanup_audit", s.opts.AuditSchedule, s.cleanupAudit},
	}
	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if err := ValidateSchedule(job.schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", job.schedule, job.name, err)
		}
		run := job.run
		id, err := s.cron.AddFunc(job.schedule, func() { run(ctx) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.entries[job.name] = id
	}

	if len(s.entries) == 0 {
		s.log.Info("housekeeping scheduler disabled")
		return nil
	}

	s.cron.Start()
	s.isRunning = true
	s.log.Info("housekeeping scheduler started",
		zap.String("sweep_schedule", s.opts.SweepSchedule),
		zap.String("audit_schedule", s.opts.AuditSchedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for running jobs and stops the cron runner.
func (s *HousekeepingScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.log.Info("housekeeping scheduler stopped")
}

func (s *HousekeepingScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job fires next: "sweep_overdue" or
// "cleanup_audit".
func (s *HousekeepingScheduler) NextRun(job string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[job]
	if !ok || !s.isRunning {
		return nil
	}
	next := s.cron.Entry(id).Next
	return &next
}

// RunNow runs both jobs immediately, in the calling goroutine.
func (s *HousekeepingScheduler) RunNow(ctx context.Context) {
	s.sweepOverdue(ctx)
	s.cleanupAudit(ctx)
}

func (s *HousekeepingScheduler) sweepOverdue(ctx context.Context) {
	task := tasks.SweepOverdueTask{}
	if s.enqueue(task) {
		return
	}

	moved, err := tasks.Sweep(ctx, s.sweeper, task)
	if err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
	}
	s.record("sweep_overdue", fmt.Sprintf("Returned %d overdue borrows", moved), err)
}

func (s *HousekeepingScheduler) cleanupAudit(context.Context) {
	task := tasks.CleanupAuditEventsTask{RetentionDays: s.opts.AuditRetentionDays}
	if s.enqueue(task) {
		return
	}

	deleted, err := tasks.CleanupAuditEvents(s.cleaner, task.RetentionDays, s.log)
	if err != nil {
		s.log.Error("audit cleanup failed", zap.Error(err))
	}
	s.record("cleanup_audit", fmt.Sprintf("Deleted %d audit events", deleted), err)
}

// enqueue hands task to the queue. It reports false when the job should run
// inline instead.
func (s *HousekeepingScheduler) enqueue(task backlite.Task) bool {
	if s.queue == nil {
		return false
	}
	if _, err := s.queue.Add(task).Save(); err != nil {
		s.log.Warn("failed to enqueue housekeeping, running inline", zap.String("queue", task.Config().Name), zap.Error(err))
		return false
	}
	return true
}

func (s *HousekeepingScheduler) record(action, description string, err error) {
	if s.audit != nil {
		s.audit.LogHousekeeping(action, description, err)
	}
}
