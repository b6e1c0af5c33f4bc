package service

import (
	"context"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/notify"
)

type LoanService interface {
	Collect(ctx context.Context, reservationID int32) domain.Result[*domain.Loan]
	ReturnLoan(ctx context.Context, loanID int32) domain.Result[domain.ReturnReceipt]
	GetAllLoans(ctx context.Context, page, pageSize int32) domain.Result[*domain.PaginatedLoans]
	GetLoansByUserID(ctx context.Context, userID, page, pageSize int32) domain.Result[*domain.PaginatedLoans]
}

// WaitlistNotifier tells the next waiting user that a device is free.
type WaitlistNotifier interface {
	NotifyNext(ctx context.Context, deviceID int32) notify.AdvanceResult
}
