package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

const defaultAuditRetentionDays = 30

// AuditEventCleaner deletes audit events older than a retention window.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// CleanupAuditEventsTask prunes the audit trail.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuditEvents runs the cleanup directly. Used by the processor and by
// the scheduler when the queue is disabled.
func CleanupAuditEvents(cleaner AuditEventCleaner, retentionDays int, log *zap.Logger) (int64, error) {
	if cleaner == nil {
		return 0, errors.New("audit event cleaner not configured")
	}
	if retentionDays <= 0 {
		retentionDays = defaultAuditRetentionDays
	}

	deleted, err := cleaner.DeleteOldEvents(time.Duration(retentionDays) * 24 * time.Hour)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit events: %w", err)
	}
	if log != nil {
		log.Info("audit events pruned", zap.Int64("deleted", deleted), zap.Int("retention_days", retentionDays))
	}
	return deleted, nil
}

func CleanupAuditEventsProcessor(cleaner AuditEventCleaner, log *zap.Logger) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		_, err := CleanupAuditEvents(cleaner, task.RetentionDays, log)
		return err
	}
}

func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner, log))
}
