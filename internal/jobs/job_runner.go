package jobs

import (
	"context"
	"fmt"
	"time"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/metrics"
	"device-loan-backend/internal/notify"
)

const (
	JobRetryWaitlistNotifications = "retry-waitlist-notifications"
	JobSendOverdueReminders       = "send-overdue-reminders"
)

// WaitlistRetrier re-runs the waitlist advance for every device that has a
// free unit and someone still waiting.
type WaitlistRetrier interface {
	AdvanceAll(ctx context.Context) ([]notify.AdvanceResult, error)
}

// OverdueSource lists loans that are past their due date.
type OverdueSource interface {
	ListOverdue(ctx context.Context, now time.Time) ([]domain.LoanView, error)
}

// OverdueNotifier sends one overdue reminder.
type OverdueNotifier interface {
	NotifyLoanOverdue(ctx context.Context, view domain.LoanView) error
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	waitlist WaitlistRetrier
	overdue  OverdueSource
	notifier OverdueNotifier
	clock    clock.Clock
	metrics  *metrics.Collector
}

func NewJobRunner(waitlist WaitlistRetrier, overdue OverdueSource, notifier OverdueNotifier, clk clock.Clock, m *metrics.Collector) *JobRunner {
	return &JobRunner{
		waitlist: waitlist,
		overdue:  overdue,
		notifier: notifier,
		clock:    clk,
		metrics:  m,
	}
}

// Run executes the named job once.
func (jr *JobRunner) Run(ctx context.Context, name string) error {
	switch name {
	case JobRetryWaitlistNotifications:
		return jr.RetryWaitlistNotifications(ctx)
	case JobSendOverdueReminders:
		return jr.SendOverdueReminders(ctx)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

// RunAll runs every job in turn and returns the first failure.
func (jr *JobRunner) RunAll(ctx context.Context) error {
	var first error
	for _, name := range []string{JobRetryWaitlistNotifications, JobSendOverdueReminders} {
		if err := jr.Run(ctx, name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(ctx context.Context, jobName string, jobFunc func(ctx context.Context) error) (err error) {
	log := logger.WithService("jobs").With("job", jobName)
	start := jr.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Job panicked", "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
		jr.metrics.RecordJobRun(jobName, jr.clock.Now().Sub(start).Seconds(), err)
	}()

	log.InfoContext(ctx, "Starting job")
	if err = jobFunc(ctx); err != nil {
		log.ErrorContext(ctx, "Job failed", "error", err)
		return err
	}
	log.InfoContext(ctx, "Job completed")
	return nil
}
