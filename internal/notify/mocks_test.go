package notify

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"device-loan-backend/internal/domain"
)

type MockUserRepo struct{ mock.Mock }

func (m *MockUserRepo) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockDeviceRepo struct{ mock.Mock }

func (m *MockDeviceRepo) GetByID(ctx context.Context, id int32) (*domain.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Device), args.Error(1)
}

type MockNotificationRepo struct {
	mock.Mock
	mu      sync.Mutex
	records []domain.NotificationRecord
}

func (m *MockNotificationRepo) Create(ctx context.Context, record *domain.NotificationRecord) error {
	m.mu.Lock()
	m.records = append(m.records, *record)
	m.mu.Unlock()
	return m.Called(ctx, record).Error(0)
}

func (m *MockNotificationRepo) Records() []domain.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.NotificationRecord(nil), m.records...)
}

type MockSender struct{ mock.Mock }

func (m *MockSender) Send(ctx context.Context, e Email) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockSender) Channel() string { return "email" }

type MockWaitlistRepo struct{ mock.Mock }

func (m *MockWaitlistRepo) NextEntry(ctx context.Context, deviceID int32) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlistRepo) MarkNotified(ctx context.Context, id int32, at time.Time) (int64, error) {
	args := m.Called(ctx, id, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWaitlistRepo) DevicesAwaitingNotification(ctx context.Context) ([]int32, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int32), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) NotifyDeviceAvailable(ctx context.Context, userID, deviceID int32) error {
	return m.Called(ctx, userID, deviceID).Error(0)
}

// inlineTx runs fn with the caller's context and reports fn's error.
type inlineTx struct{ calls int }

func (t *inlineTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

// instantTimer fires as soon as it is started.
type instantTimer struct{ c chan time.Time }

func newInstantTimer() *instantTimer { return &instantTimer{c: make(chan time.Time, 1)} }

func (t *instantTimer) Start(time.Duration) { t.c <- time.Now() }
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }
