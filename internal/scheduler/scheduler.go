package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"device-loan-backend/internal/config"
	"device-loan-backend/internal/jobs"
	"device-loan-backend/internal/logger"
)

// Runner runs one named job.
type Runner interface {
	Run(ctx context.Context, name string) error
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron   *cron.Cron
	jobs   Runner
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers every job from cfg. An invalid cron expression is
// reported instead of being skipped.
func NewScheduler(runner Runner, cfg config.SchedulerConfig) (*Scheduler, error) {
	// UTC with seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, jobs: runner, ctx: ctx, cancel: cancel}

	specs := map[string]string{
		jobs.JobRetryWaitlistNotifications: cfg.RetryWaitlistNotifications,
		jobs.JobSendOverdueReminders:       cfg.SendOverdueReminders,
	}
	for name, spec := range specs {
		if err := s.register(name, spec); err != nil {
			cancel()
			return nil, err
		}
	}

	logger.Info("All cron jobs registered successfully", "count", len(specs))
	return s, nil
}

func (s *Scheduler) register(name, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		// runner logs and records its own failures
		_ = s.jobs.Run(s.ctx, name)
	})
	if err != nil {
		return fmt.Errorf("register job %s with spec %q: %w", name, spec, err)
	}
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	logger.Info("Stopping cron scheduler...")
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		logger.Info("Cron scheduler stopped")
	case <-ctx.Done():
		logger.Warn("Cron scheduler stop timed out", "error", ctx.Err())
	}
}

// Entries returns how many jobs are scheduled.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
