package domain

import "time"

// WaitlistEntry is a user's request to hear when a device frees up.
// Entries for a device are served in AddedAt order.
type WaitlistEntry struct {
	ID         int32      `json:"id"`
	UserID     int32      `json:"user_id"`
	DeviceID   int32      `json:"device_id"`
	AddedAt    time.Time  `json:"added_at"`
	IsNotified bool       `json:"is_notified"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
}
