// Package scheduling runs periodic registry refreshes for regman watch.
// It builds an "@every" cron schedule from the cache refresh interval and
// ensures a running refresh finishes before shutdown.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// ErrRefreshDisabled is returned when the refresh interval is zero.
var ErrRefreshDisabled = errors.New("automatic refresh is disabled (refresh interval is 0)")

// refreshWaitTimeout bounds how long shutdown waits for a running refresh.
const refreshWaitTimeout = 60 * time.Second

// ScheduleSpec converts a refresh interval in seconds to a cron spec.
func ScheduleSpec(intervalSeconds uint64) (string, error) {
	if intervalSeconds == 0 {
		return "", ErrRefreshDisabled
	}

	return fmt.Sprintf("@every %ds", intervalSeconds), nil
}

// WaitForRunningRefresh waits for a refresh holding the lock to complete before
// proceeding with shutdown.
//
// Parameters:
//   - ctx: Context for cancellation, allowing early shutdown.
//   - lock: Channel used to serialize refreshes. It holds a value when no refresh runs.
func WaitForRunningRefresh(ctx context.Context, lock chan bool) {
	logrus.Debug("Checking lock status before shutdown.")

	if len(lock) == 0 {
		select {
		case <-lock:
			logrus.Debug("Lock acquired, refresh finished.")
		case <-time.After(refreshWaitTimeout):
			logrus.Warn("Timeout waiting for running refresh to finish, proceeding with shutdown.")
		case <-ctx.Done():
			logrus.Warn("Context cancelled while waiting for running refresh.")
		}
	} else {
		logrus.Debug("No refresh running, lock available.")
	}
}

// RunRefreshOnSchedule runs refresh every intervalSeconds until ctx is done or
// the process receives SIGINT or SIGTERM.
//
// A tick that fires while a previous refresh is still running is skipped.
//
// Parameters:
//   - ctx: Context controlling the scheduler's lifecycle.
//   - intervalSeconds: Refresh interval. Zero returns ErrRefreshDisabled.
//   - lock: Channel serializing refreshes, or nil to create one.
//   - refresh: Function performing one refresh.
//   - writeStartupMessage: Called once with the first scheduled run time.
//   - refreshOnStart: Run one refresh before the first tick.
//
// Returns:
//   - error: An error if scheduling fails, nil on shutdown.
func RunRefreshOnSchedule(
	ctx context.Context,
	intervalSeconds uint64,
	lock chan bool,
	refresh func(context.Context),
	writeStartupMessage func(time.Time),
	refreshOnStart bool,
) error {
	spec, err := ScheduleSpec(intervalSeconds)
	if err != nil {
		return err
	}

	if lock == nil {
		lock = make(chan bool, 1)
		lock <- true
	}

	scheduler := cron.New()

	refreshFunc := func() {
		select {
		case v := <-lock:
			defer func() { lock <- v }()

			refresh(ctx)
			logrus.Debug("Refresh completed")
		default:
			logrus.Debug("Skipped refresh, another one is already running.")
		}

		if entries := scheduler.Entries(); len(entries) > 0 {
			logrus.Debug("Scheduled next run: " + entries[0].Next.String())
		}
	}

	if err := scheduler.AddFunc(spec, refreshFunc); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	nextRun := scheduler.Entries()[0].Schedule.Next(time.Now())
	writeStartupMessage(nextRun)

	if refreshOnStart {
		refreshFunc()
	}

	scheduler.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case <-ctx.Done():
		logrus.Debug("Context canceled, stopping scheduler...")
	case <-interrupt:
		logrus.Debug("Received interrupt signal, stopping scheduler...")
	}

	scheduler.Stop()
	logrus.Debug("Waiting for running refresh to be finished...")

	WaitForRunningRefresh(ctx, lock)

	logrus.Debug("Scheduler stopped.")

	return nil
}
