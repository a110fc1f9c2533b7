// Package jobs runs the periodic notification sweeps.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

// Sweeper is the work the reminder job drives.  NotificationService
// implements it.
type Sweeper interface {
	SweepTomorrowReminders(ctx context.Context) (int, error)
	SweepFourHourReminders(ctx context.Context) (int, error)
	CleanupOldNotifications(ctx context.Context) (int64, error)
}

// sweepTimeout bounds one pass so a stuck database call cannot pile up
// ticks behind it.
const sweepTimeout = 2 * time.Minute

// ReminderJob sends booking reminders and removes old notifications on
// two independent tickers.  Each sweep runs once right after Start.
type ReminderJob struct {
	sweeper       Sweeper
	reminderEvery time.Duration
	cleanupEvery  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReminderJob(s Sweeper, reminderEvery, cleanupEvery time.Duration) *ReminderJob {
	if reminderEvery <= 0 {
		reminderEvery = time.Hour
	}
	if cleanupEvery <= 0 {
		cleanupEvery = 24 * time.Hour
	}
	return &ReminderJob{sweeper: s, reminderEvery: reminderEvery, cleanupEvery: cleanupEvery}
}

// Start launches the loops.  Calling Start on a running job does nothing.
func (j *ReminderJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(2)
	go j.loop(ctx, j.reminderEvery, j.RunReminders)
	go j.loop(ctx, j.cleanupEvery, j.RunCleanup)
	logger.Infof("reminder job started (reminders every %s, cleanup every %s)", j.reminderEvery, j.cleanupEvery)
}

// Stop cancels the loops and waits for a running sweep to return.
func (j *ReminderJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	j.wg.Wait()
	logger.Info("reminder job stopped")
}

func (j *ReminderJob) loop(ctx context.Context, every time.Duration, run func(context.Context)) {
	defer j.wg.Done()
	run(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run(ctx)
		}
	}
}

// RunReminders performs one tomorrow and one four-hour sweep.  Failures
// are logged; the next tick tries again.
func (j *ReminderJob) RunReminders(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	if _, err := j.sweeper.SweepTomorrowReminders(ctx); err != nil {
		logger.Error("tomorrow reminder sweep failed", err)
	}
	if _, err := j.sweeper.SweepFourHourReminders(ctx); err != nil {
		logger.Error("four-hour reminder sweep failed", err)
	}
}

// RunCleanup removes read notifications past retention.
func (j *ReminderJob) RunCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	if _, err := j.sweeper.CleanupOldNotifications(ctx); err != nil {
		logger.Error("notification cleanup failed", err)
	}
}
