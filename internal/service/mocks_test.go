package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/notify"
)

type MockReservationRepo struct{ mock.Mock }

func (m *MockReservationRepo) GetByID(ctx context.Context, id int32) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepo) SetStatus(ctx context.Context, id int32, status domain.ReservationStatus) (int64, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(int64), args.Error(1)
}

type MockLoanRepo struct{ mock.Mock }

func (m *MockLoanRepo) Create(ctx context.Context, reservationID int32, collectedAt time.Time) (*domain.Loan, error) {
	args := m.Called(ctx, reservationID, collectedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepo) SetReturned(ctx context.Context, id int32, at time.Time) (*domain.Loan, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepo) GetByReservationID(ctx context.Context, reservationID int32) (*domain.Loan, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepo) GetWithReservation(ctx context.Context, id int32) (*domain.LoanWithReservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanWithReservation), args.Error(1)
}

func (m *MockLoanRepo) ListViews(ctx context.Context, page, pageSize int32) ([]domain.LoanView, int32, error) {
	args := m.Called(ctx, page, pageSize)
	views, _ := args.Get(0).([]domain.LoanView)
	return views, args.Get(1).(int32), args.Error(2)
}

func (m *MockLoanRepo) ListViewsByUser(ctx context.Context, userID, page, pageSize int32) ([]domain.LoanView, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	views, _ := args.Get(0).([]domain.LoanView)
	return views, args.Get(1).(int32), args.Error(2)
}

func (m *MockLoanRepo) ListOverdue(ctx context.Context, now time.Time) ([]domain.LoanView, error) {
	args := m.Called(ctx, now)
	views, _ := args.Get(0).([]domain.LoanView)
	return views, args.Error(1)
}

type MockInventoryRepo struct{ mock.Mock }

func (m *MockInventoryRepo) SetAvailable(ctx context.Context, id int32, available bool) (int64, error) {
	args := m.Called(ctx, id, available)
	return args.Get(0).(int64), args.Error(1)
}

type MockWaitlistNotifier struct{ mock.Mock }

func (m *MockWaitlistNotifier) NotifyNext(ctx context.Context, deviceID int32) notify.AdvanceResult {
	return m.Called(ctx, deviceID).Get(0).(notify.AdvanceResult)
}

// fakeTx runs fn directly and remembers whether the unit of work failed,
// standing in for a rollback.
type fakeTx struct {
	calls      int
	rolledBack bool
	onCommit   func()
}

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if err := fn(ctx); err != nil {
		t.rolledBack = true
		return err
	}
	if t.onCommit != nil {
		t.onCommit()
	}
	return nil
}
