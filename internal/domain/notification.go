package domain

import "time"

type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

const (
	NotificationTypeDeviceAvailable = "DEVICE_AVAILABLE"
	NotificationTypeLoanOverdue     = "LOAN_OVERDUE"
)

// NotificationRecord is the delivery record appended for every send attempt.
type NotificationRecord struct {
	ID         int32              `json:"id"`
	UserID     int32              `json:"user_id"`
	Channel    string             `json:"channel"`
	Subject    string             `json:"subject"`
	Body       string             `json:"body"`
	Status     NotificationStatus `json:"status"`
	Error      string             `json:"error,omitempty"`
	Attributes map[string]string  `json:"attributes"`
	CreatedAt  time.Time          `json:"created_at"`
}
