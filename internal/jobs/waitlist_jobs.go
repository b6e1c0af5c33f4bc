package jobs

import (
	"context"

	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/notify"
)

// RetryWaitlistNotifications offers free devices to waiting users whose
// earlier notification failed.
func (jr *JobRunner) RetryWaitlistNotifications(ctx context.Context) error {
	return jr.runWithRecovery(ctx, JobRetryWaitlistNotifications, func(ctx context.Context) error {
		results, err := jr.waitlist.AdvanceAll(ctx)

		counts := map[notify.AdvanceStatus]int{}
		for _, r := range results {
			counts[r.Status]++
		}
		logger.InfoContext(ctx, "Waitlist retry pass finished",
			"devices", len(results),
			"notified", counts[notify.AdvanceNotified],
			"failed", counts[notify.AdvanceFailed],
			"skipped", counts[notify.AdvanceSkipped])
		return err
	})
}
