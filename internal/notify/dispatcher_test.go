package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/repository/postgres"
	"device-loan-backend/internal/resilience"
)

type dispatcherFixture struct {
	users    *MockUserRepo
	devices  *MockDeviceRepo
	records  *MockNotificationRepo
	sender   *MockSender
	breakers *resilience.Registry
	d        *Dispatcher
	user     *domain.User
	device   *domain.Device
}

func newDispatcherFixture(t *testing.T, threshold int) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		users:   new(MockUserRepo),
		devices: new(MockDeviceRepo),
		records: new(MockNotificationRepo),
		sender:  new(MockSender),
		breakers: resilience.NewRegistry(resilience.BreakerSettings{
			FailureThreshold: threshold,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: 2 * time.Minute,
		}),
		user:   &domain.User{ID: 7, Name: gofakeit.Name(), Email: gofakeit.Email()},
		device: &domain.Device{ID: 2, Name: "Pixel 9", Category: "phone"},
	}
	f.d = NewDispatcher(
		DispatcherConfig{
			Timeout: time.Second,
			Retry: resilience.RetryPolicy{
				MaxAttempts:       3,
				InitialDelay:      time.Second,
				MaxDelay:          5 * time.Second,
				BackoffMultiplier: 2,
			},
		},
		f.breakers, f.sender, f.users, f.devices, f.records,
		clock.NewManual(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)), nil,
		resilience.WithTimer(func() backoff.Timer { return newInstantTimer() }),
	)
	return f
}

func (f *dispatcherFixture) expectLookups() {
	f.users.On("GetByID", mock.Anything, f.user.ID).Return(f.user, nil)
	f.devices.On("GetByID", mock.Anything, f.device.ID).Return(f.device, nil)
}

func TestDispatcher_NotifyDeviceAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newDispatcherFixture(t, 5)
		f.expectLookups()
		f.sender.On("Send", mock.Anything, mock.MatchedBy(func(e Email) bool {
			return e.To == f.user.Email && e.Subject == "Pixel 9 is available"
		})).Return(nil).Once()
		f.records.On("Create", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.d.NotifyDeviceAvailable(ctx, f.user.ID, f.device.ID))

		recs := f.records.Records()
		require.Len(t, recs, 1)
		assert.Equal(t, domain.NotificationStatusSent, recs[0].Status)
		assert.Equal(t, "1", recs[0].Attributes["attempt"])
		assert.Equal(t, domain.NotificationTypeDeviceAvailable, recs[0].Attributes["type"])
		assert.Equal(t, "2", recs[0].Attributes["device_id"])
	})

	t.Run("Transient failures exhaust retries", func(t *testing.T) {
		f := newDispatcherFixture(t, 5)
		f.expectLookups()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(&SendError{Status: 503, Body: "unavailable"})
		f.records.On("Create", mock.Anything, mock.Anything).Return(nil)

		err := f.d.NotifyDeviceAvailable(ctx, f.user.ID, f.device.ID)

		var exhausted *resilience.RetryExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 3, exhausted.Attempts)
		f.sender.AssertNumberOfCalls(t, "Send", 3)

		recs := f.records.Records()
		require.Len(t, recs, 3)
		for i, r := range recs {
			assert.Equal(t, domain.NotificationStatusFailed, r.Status)
			assert.Contains(t, r.Error, "503")
			assert.Equal(t, []string{"1", "2", "3"}[i], r.Attributes["attempt"])
		}

		snap := f.breakers.Get(DependencyEmail).Snapshot()
		assert.Equal(t, 1, snap.ConsecutiveFailures)
	})

	t.Run("Unknown user is not retried", func(t *testing.T) {
		f := newDispatcherFixture(t, 5)
		f.users.On("GetByID", mock.Anything, int32(99)).Return(nil, domain.ErrUserNotFound)

		err := f.d.NotifyDeviceAvailable(ctx, 99, f.device.ID)

		assert.ErrorIs(t, err, domain.ErrNotFound)
		f.users.AssertNumberOfCalls(t, "GetByID", 1)
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		assert.Empty(t, f.records.Records())
	})

	t.Run("Open breaker rejects without sending", func(t *testing.T) {
		f := newDispatcherFixture(t, 1)
		f.expectLookups()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(&SendError{Status: 500})
		f.records.On("Create", mock.Anything, mock.Anything).Return(nil)

		require.Error(t, f.d.NotifyDeviceAvailable(ctx, f.user.ID, f.device.ID))
		assert.Equal(t, resilience.StateOpen, f.breakers.Get(DependencyEmail).State())

		err := f.d.NotifyDeviceAvailable(ctx, f.user.ID, f.device.ID)
		var open *resilience.CircuitOpenError
		require.ErrorAs(t, err, &open)
		assert.Equal(t, DependencyEmail, open.Name)
		f.sender.AssertNumberOfCalls(t, "Send", 3)
	})

	t.Run("Record failure keeps send outcome", func(t *testing.T) {
		f := newDispatcherFixture(t, 5)
		f.expectLookups()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(nil)
		f.records.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

		assert.NoError(t, f.d.NotifyDeviceAvailable(ctx, f.user.ID, f.device.ID))
		f.sender.AssertNumberOfCalls(t, "Send", 1)
	})
}

func TestDispatcher_SlowSendTimesOut(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := newDispatcherFixture(t, 5)
	f.d.records = postgres.NewNotificationRepository(db)
	f.d.timeout = 20 * time.Millisecond
	f.expectLookups()
	f.sender.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)
	for i := 1; i <= 3; i++ {
		sqlMock.ExpectQuery("INSERT INTO notifications").
			WithArgs(f.user.ID, "email", sqlmock.AnyArg(), sqlmock.AnyArg(),
				string(domain.NotificationStatusFailed), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(i))
	}

	err = f.d.NotifyDeviceAvailable(context.Background(), f.user.ID, f.device.ID)

	var exhausted *resilience.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	var timeout *resilience.TimeoutError
	assert.ErrorAs(t, err, &timeout)
	f.sender.AssertNumberOfCalls(t, "Send", 3)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestDispatcher_NotifyLoanOverdue(t *testing.T) {
	f := newDispatcherFixture(t, 5)
	view := domain.LoanView{
		Loan:        domain.Loan{ID: 21},
		Reservation: domain.ReservationSummary{DueDate: time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)},
		User:        domain.UserSummary{ID: 7, Name: "Ada", Email: "ada@example.com"},
		Device:      domain.DeviceSummary{ID: 2, Name: "Pixel 9"},
	}
	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(e Email) bool {
		return e.To == "ada@example.com" && e.Subject == "Please return Pixel 9"
	})).Return(nil)
	f.records.On("Create", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.d.NotifyLoanOverdue(context.Background(), view))

	recs := f.records.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.NotificationTypeLoanOverdue, recs[0].Attributes["type"])
	assert.Equal(t, "21", recs[0].Attributes["loan_id"])
	assert.Contains(t, recs[0].Body, "2026-03-30")
}
