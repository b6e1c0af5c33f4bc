package jobs

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/notify"
)

type MockWaitlistRetrier struct{ mock.Mock }

func (m *MockWaitlistRetrier) AdvanceAll(ctx context.Context) ([]notify.AdvanceResult, error) {
	args := m.Called(ctx)
	results, _ := args.Get(0).([]notify.AdvanceResult)
	return results, args.Error(1)
}

type MockOverdueSource struct{ mock.Mock }

func (m *MockOverdueSource) ListOverdue(ctx context.Context, now time.Time) ([]domain.LoanView, error) {
	args := m.Called(ctx, now)
	views, _ := args.Get(0).([]domain.LoanView)
	return views, args.Error(1)
}

type MockOverdueNotifier struct{ mock.Mock }

func (m *MockOverdueNotifier) NotifyLoanOverdue(ctx context.Context, view domain.LoanView) error {
	return m.Called(ctx, view).Error(0)
}
