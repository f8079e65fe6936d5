package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/entities"
)

// Sweeper moves overdue borrows back to the librarian.
type Sweeper interface {
	SweepOverdue(ctx context.Context, userID uint) (int, error)
	SweepAllOverdue(ctx context.Context) (int, error)
}

// SweepOverdueTask sweeps one reader's overdue borrows, or everyone's when
// UserID is zero.
type SweepOverdueTask struct {
	UserID uint `json:"user_id"`
}

func (t SweepOverdueTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sweep_overdue",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Sweep runs task synchronously.
func Sweep(ctx context.Context, sweeper Sweeper, task SweepOverdueTask) (int, error) {
	if sweeper == nil {
		return 0, fmt.Errorf("sweeper not configured")
	}
	if task.UserID == 0 {
		return sweeper.SweepAllOverdue(ctx)
	}
	return sweeper.SweepOverdue(ctx, task.UserID)
}

func SweepOverdueProcessor(sweeper Sweeper, log *zap.Logger) backlite.QueueProcessor[SweepOverdueTask] {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, task SweepOverdueTask) error {
		moved, err := Sweep(ctx, sweeper, task)
		if err != nil {
			return fmt.Errorf("sweep overdue for user %d: %w", task.UserID, err)
		}
		if moved > 0 {
			log.Info("overdue borrows returned", zap.Uint("user_id", task.UserID), zap.Int("moved", moved))
		}
		return nil
	}
}

func NewSweepOverdueQueue(sweeper Sweeper, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(SweepOverdueProcessor(sweeper, log))
}

// OverdueLoginHook sweeps a reader's overdue borrows when they sign in. With
// a queue client the sweep is enqueued; without one it runs inline.
type OverdueLoginHook struct {
	client  *Client
	sweeper Sweeper
	log     *zap.Logger
}

// NewOverdueLoginHook creates the hook. client may be nil.
func NewOverdueLoginHook(client *Client, sweeper Sweeper, log *zap.Logger) *OverdueLoginHook {
	if log == nil {
		log = zap.NewNop()
	}
	return &OverdueLoginHook{client: client, sweeper: sweeper, log: log.Named("tasks")}
}

// AfterLogin never fails the login; problems are logged.
func (h *OverdueLoginHook) AfterLogin(ctx context.Context, user *entities.User) {
	if user == nil || user.IsLibrarian() {
		return
	}
	task := SweepOverdueTask{UserID: user.ID}

	if h.client != nil {
		_, err := h.client.Add(task).Save()
		if err == nil {
			return
		}
		h.log.Warn("failed to enqueue overdue sweep, running inline", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	if _, err := Sweep(ctx, h.sweeper, task); err != nil {
		h.log.Error("overdue sweep failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
}
