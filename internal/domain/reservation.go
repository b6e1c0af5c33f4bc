package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusCollected ReservationStatus = "collected"
	ReservationStatusReturned  ReservationStatus = "returned"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is a hold placed by a user on one inventory unit of a device.
type Reservation struct {
	ID          int32             `json:"id"`
	UserID      int32             `json:"user_id"`
	DeviceID    int32             `json:"device_id"`
	InventoryID int32             `json:"inventory_id"`
	ReservedAt  time.Time         `json:"reserved_at"`
	DueDate     time.Time         `json:"due_date"`
	Status      ReservationStatus `json:"status"`
}

// CanCollect reports whether the reservation may turn into a loan.
func (r *Reservation) CanCollect() bool {
	return r.Status == ReservationStatusPending
}
