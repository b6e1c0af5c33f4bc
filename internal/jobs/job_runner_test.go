package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/metrics"
	"device-loan-backend/internal/notify"
	"device-loan-backend/internal/resilience"
)

type runnerFixture struct {
	waitlist *MockWaitlistRetrier
	overdue  *MockOverdueSource
	notifier *MockOverdueNotifier
	clock    *clock.Manual
	registry *prometheus.Registry
	runner   *JobRunner
}

func newRunnerFixture() *runnerFixture {
	f := &runnerFixture{
		waitlist: new(MockWaitlistRetrier),
		overdue:  new(MockOverdueSource),
		notifier: new(MockOverdueNotifier),
		clock:    clock.NewManual(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)),
		registry: prometheus.NewRegistry(),
	}
	f.runner = NewJobRunner(f.waitlist, f.overdue, f.notifier, f.clock, metrics.NewCollector(f.registry))
	return f
}

func (f *runnerFixture) jobRuns(t *testing.T, job, result string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "device_loans_job_runs_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["job"] == job && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func overdueView(loanID int32) domain.LoanView {
	return domain.LoanView{
		Loan: domain.Loan{ID: loanID},
		User: domain.UserSummary{ID: loanID + 100, Email: "borrower@example.com"},
	}
}

func TestRetryWaitlistNotifications(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newRunnerFixture()
		f.waitlist.On("AdvanceAll", mock.Anything).Return([]notify.AdvanceResult{
			{Status: notify.AdvanceNotified, DeviceID: 1},
			{Status: notify.AdvanceFailed, DeviceID: 2, Err: errors.New("circuit open")},
		}, nil)

		require.NoError(t, f.runner.RetryWaitlistNotifications(ctx))
		assert.Equal(t, float64(1), f.jobRuns(t, JobRetryWaitlistNotifications, "success"))
	})

	t.Run("Listing failure", func(t *testing.T) {
		f := newRunnerFixture()
		f.waitlist.On("AdvanceAll", mock.Anything).Return(nil, errors.New("db down"))

		assert.Error(t, f.runner.RetryWaitlistNotifications(ctx))
		assert.Equal(t, float64(1), f.jobRuns(t, JobRetryWaitlistNotifications, "error"))
	})

	t.Run("Panic is recovered", func(t *testing.T) {
		f := newRunnerFixture()
		f.waitlist.On("AdvanceAll", mock.Anything).Run(func(mock.Arguments) { panic("boom") }).Return(nil, nil)

		var err error
		assert.NotPanics(t, func() { err = f.runner.Run(ctx, JobRetryWaitlistNotifications) })
		assert.ErrorContains(t, err, "panicked")
	})
}

func TestSendOverdueReminders(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends every reminder", func(t *testing.T) {
		f := newRunnerFixture()
		views := []domain.LoanView{overdueView(1), overdueView(2)}
		f.overdue.On("ListOverdue", mock.Anything, f.clock.Now()).Return(views, nil)
		f.notifier.On("NotifyLoanOverdue", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.runner.SendOverdueReminders(ctx))
		f.notifier.AssertNumberOfCalls(t, "NotifyLoanOverdue", 2)
	})

	t.Run("Continues past a single failure", func(t *testing.T) {
		f := newRunnerFixture()
		views := []domain.LoanView{overdueView(1), overdueView(2), overdueView(3)}
		f.overdue.On("ListOverdue", mock.Anything, mock.Anything).Return(views, nil)
		f.notifier.On("NotifyLoanOverdue", mock.Anything, views[0]).Return(&resilience.RetryExhaustedError{Attempts: 3, Last: errors.New("503")})
		f.notifier.On("NotifyLoanOverdue", mock.Anything, mock.Anything).Return(nil)

		err := f.runner.SendOverdueReminders(ctx)
		assert.ErrorContains(t, err, "1 of 3")
		f.notifier.AssertNumberOfCalls(t, "NotifyLoanOverdue", 3)
	})

	t.Run("Stops when the circuit opens", func(t *testing.T) {
		f := newRunnerFixture()
		views := []domain.LoanView{overdueView(1), overdueView(2), overdueView(3)}
		f.overdue.On("ListOverdue", mock.Anything, mock.Anything).Return(views, nil)
		f.notifier.On("NotifyLoanOverdue", mock.Anything, mock.Anything).
			Return(&resilience.CircuitOpenError{Name: notify.DependencyEmail, State: resilience.StateOpen})

		err := f.runner.SendOverdueReminders(ctx)
		assert.ErrorContains(t, err, "3 of 3")
		f.notifier.AssertNumberOfCalls(t, "NotifyLoanOverdue", 1)
	})

	t.Run("Nothing overdue", func(t *testing.T) {
		f := newRunnerFixture()
		f.overdue.On("ListOverdue", mock.Anything, mock.Anything).Return(nil, nil)

		require.NoError(t, f.runner.SendOverdueReminders(ctx))
		f.notifier.AssertNotCalled(t, "NotifyLoanOverdue", mock.Anything, mock.Anything)
	})
}

func TestRunAll(t *testing.T) {
	f := newRunnerFixture()
	f.waitlist.On("AdvanceAll", mock.Anything).Return(nil, errors.New("db down"))
	f.overdue.On("ListOverdue", mock.Anything, mock.Anything).Return(nil, nil)

	err := f.runner.RunAll(context.Background())
	assert.ErrorContains(t, err, "db down")
	f.overdue.AssertExpectations(t)

	assert.ErrorContains(t, f.runner.Run(context.Background(), "nope"), "unknown job")
}

func TestRunWithRecovery_LogsUnderJobsService(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Get()
	logger.SetDefault(logger.New("info", "json", &buf))
	t.Cleanup(func() { logger.SetDefault(prev) })

	f := newRunnerFixture()
	err := f.runner.runWithRecovery(context.Background(), "explode", func(context.Context) error {
		panic("boom")
	})
	require.EqualError(t, err, "job explode panicked: boom")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var last map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &last))
	assert.Equal(t, "Job panicked", last["msg"])
	assert.Equal(t, "jobs", last["service"])
	assert.Equal(t, "explode", last["job"])
}
