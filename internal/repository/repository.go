package repository

import (
	"context"
	"time"

	"device-loan-backend/internal/domain"
)

// Transactor runs fn inside one database transaction carried by the context
// handed to fn. Nested calls join the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ReservationRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Reservation, error)
	SetStatus(ctx context.Context, id int32, status domain.ReservationStatus) (int64, error)
}

type LoanRepository interface {
	Create(ctx context.Context, reservationID int32, collectedAt time.Time) (*domain.Loan, error)
	SetReturned(ctx context.Context, id int32, at time.Time) (*domain.Loan, error)
	// GetByReservationID returns nil without error when the reservation has no loan.
	GetByReservationID(ctx context.Context, reservationID int32) (*domain.Loan, error)
	GetWithReservation(ctx context.Context, id int32) (*domain.LoanWithReservation, error)
	ListViews(ctx context.Context, page, pageSize int32) ([]domain.LoanView, int32, error)
	ListViewsByUser(ctx context.Context, userID, page, pageSize int32) ([]domain.LoanView, int32, error)
	// ListOverdue returns active loans whose reservation is due before now.
	ListOverdue(ctx context.Context, now time.Time) ([]domain.LoanView, error)
}

type InventoryRepository interface {
	SetAvailable(ctx context.Context, id int32, available bool) (int64, error)
}

type WaitlistRepository interface {
	// NextEntry returns the oldest un-notified entry for the device, or nil
	// when there is none. Inside a transaction the row stays locked.
	NextEntry(ctx context.Context, deviceID int32) (*domain.WaitlistEntry, error)
	MarkNotified(ctx context.Context, id int32, at time.Time) (int64, error)
	// DevicesAwaitingNotification lists devices with un-notified entries and
	// at least one available unit.
	DevicesAwaitingNotification(ctx context.Context) ([]int32, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.User, error)
}

type DeviceRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Device, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, record *domain.NotificationRecord) error
}
