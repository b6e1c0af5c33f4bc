package domain

import "time"

type Loan struct {
	ID            int32      `json:"id"`
	ReservationID int32      `json:"reservation_id"`
	CollectedAt   time.Time  `json:"collected_at"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
}

// Active reports whether the loan has not been returned yet.
func (l *Loan) Active() bool {
	return l.ReturnedAt == nil
}

// LoanWithReservation is a loan joined with the reservation it closes.
type LoanWithReservation struct {
	Loan        Loan
	Reservation Reservation
}

// ReturnReceipt is the payload reported for a successful return.
type ReturnReceipt struct {
	Message string `json:"message"`
}

type ReservationSummary struct {
	ID         int32             `json:"id"`
	ReservedAt time.Time         `json:"reserved_at"`
	DueDate    time.Time         `json:"due_date"`
	Status     ReservationStatus `json:"status"`
}

type UserSummary struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type DeviceSummary struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type InventorySummary struct {
	ID          int32 `json:"id"`
	IsAvailable bool  `json:"is_available"`
}

// LoanView is the flattened read model returned by loan listings.
type LoanView struct {
	Loan        Loan               `json:"loan"`
	Reservation ReservationSummary `json:"reservation"`
	User        UserSummary        `json:"user"`
	Device      DeviceSummary      `json:"device"`
	Inventory   InventorySummary   `json:"inventory"`
}

type PaginatedLoans struct {
	Loans           []LoanView `json:"loans"`
	Page            int32      `json:"page"`
	PageSize        int32      `json:"page_size"`
	TotalCount      int32      `json:"total_count"`
	TotalPages      int32      `json:"total_pages"`
	HasNextPage     bool       `json:"has_next_page"`
	HasPreviousPage bool       `json:"has_previous_page"`
}

const (
	DefaultPageSize int32 = 10
	MaxPageSize     int32 = 100
)

// NormalizePage clamps page and page size to the accepted range.
func NormalizePage(page, pageSize int32) (int32, int32) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// NewPaginatedLoans derives the page metadata from the total row count.
func NewPaginatedLoans(loans []LoanView, page, pageSize, total int32) *PaginatedLoans {
	if loans == nil {
		loans = []LoanView{}
	}
	totalPages := int32(0)
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &PaginatedLoans{
		Loans:           loans,
		Page:            page,
		PageSize:        pageSize,
		TotalCount:      total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
