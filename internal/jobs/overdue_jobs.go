package jobs

import (
	"context"
	"errors"
	"fmt"

	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/resilience"
)

// SendOverdueReminders emails every borrower holding a device past its due
// date. Once the email breaker opens the rest of the batch is left for the
// next run.
func (jr *JobRunner) SendOverdueReminders(ctx context.Context) error {
	return jr.runWithRecovery(ctx, JobSendOverdueReminders, func(ctx context.Context) error {
		views, err := jr.overdue.ListOverdue(ctx, jr.clock.Now())
		if err != nil {
			return fmt.Errorf("list overdue loans: %w", err)
		}

		sent, failed := 0, 0
		for _, v := range views {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := jr.notifier.NotifyLoanOverdue(ctx, v)
			if err == nil {
				sent++
				continue
			}
			failed++
			logger.WarnContext(ctx, "Failed to send overdue reminder",
				"loan_id", v.Loan.ID,
				"user_id", v.User.ID,
				"error", err)

			var open *resilience.CircuitOpenError
			if errors.As(err, &open) {
				logger.WarnContext(ctx, "Email circuit open, deferring remaining reminders",
					"remaining", len(views)-sent-failed)
				break
			}
		}

		logger.InfoContext(ctx, "Overdue reminders processed", "overdue", len(views), "sent", sent, "failed", failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d overdue reminders not sent", len(views)-sent, len(views))
		}
		return nil
	})
}
