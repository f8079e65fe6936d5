package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu  sync.Mutex
	all int
}

func (f *fakeSweeper) SweepOverdue(context.Context, uint) (int, error) { return 0, nil }

func (f *fakeSweeper) SweepAllOverdue(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all++
	return 2, nil
}

type fakeCleaner struct {
	retention time.Duration
}

func (f *fakeCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	f.retention = retention
	return 5, nil
}

type fakeAuditor struct {
	actions      []string
	descriptions []string
}

func (f *fakeAuditor) LogHousekeeping(action, description string, err error) {
	f.actions = append(f.actions, action)
	f.descriptions = append(f.descriptions, description)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 * * * *"))
	assert.NoError(t, ValidateSchedule("30 3 * * *"))
	assert.Error(t, ValidateSchedule("every hour"))
	assert.Error(t, ValidateSchedule("0 0 * * * *"), "seconds field is not accepted")
}

func TestHousekeeping_RunNowInline(t *testing.T) {
	sweeper := &fakeSweeper{}
	cleaner := &fakeCleaner{}
	audit := &fakeAuditor{}
	s := NewHousekeepingScheduler(Options{AuditRetentionDays: 10}, sweeper, cleaner, nil, audit, nil)

	s.RunNow(context.Background())

	assert.Equal(t, 1, sweeper.all)
	assert.Equal(t, 10*24*time.Hour, cleaner.retention)
	assert.Equal(t, []string{"sweep_overdue", "cleanup_audit"}, audit.actions)
	assert.Equal(t, []string{"Returned 2 overdue borrows", "Deleted 5 audit events"}, audit.descriptions)
}

func TestHousekeeping_StartStop(t *testing.T) {
	s := NewHousekeepingScheduler(Options{
		SweepSchedule: "0 * * * *",
		AuditSchedule: "30 3 * * *",
	}, &fakeSweeper{}, &fakeCleaner{}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")
	assert.True(t, s.IsRunning())

	next := s.NextRun("sweep_overdue")
	require.NotNil(t, next)
	assert.Equal(t, 0, next.Minute())
	assert.Nil(t, s.NextRun("unknown"))

	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, s.NextRun("sweep_overdue"))
}

func TestHousekeeping_Disabled(t *testing.T) {
	s := NewHousekeepingScheduler(Options{}, &fakeSweeper{}, &fakeCleaner{}, nil, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestHousekeeping_InvalidSchedule(t *testing.T) {
	s := NewHousekeepingScheduler(Options{SweepSchedule: "nope"}, &fakeSweeper{}, &fakeCleaner{}, nil, nil, nil)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep_overdue")
	assert.False(t, s.IsRunning())
}
