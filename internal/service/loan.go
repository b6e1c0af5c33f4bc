package service

import (
	"context"
	"errors"
	"fmt"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/metrics"
	"device-loan-backend/internal/notify"
	"device-loan-backend/internal/repository"
)

const msgLoanReturned = "Loan returned successfully"

var (
	errReservationIDRequired = fmt.Errorf("%w: reservation id is required", domain.ErrValidation)
	errLoanIDRequired        = fmt.Errorf("%w: loan id is required", domain.ErrValidation)
	errUserIDRequired        = fmt.Errorf("%w: user id is required", domain.ErrValidation)
)

type loanService struct {
	tx           repository.Transactor
	reservations repository.ReservationRepository
	loans        repository.LoanRepository
	inventory    repository.InventoryRepository
	waitlist     WaitlistNotifier
	clock        clock.Clock
	metrics      *metrics.Collector
}

func NewLoanService(
	tx repository.Transactor,
	reservations repository.ReservationRepository,
	loans repository.LoanRepository,
	inventory repository.InventoryRepository,
	waitlist WaitlistNotifier,
	clk clock.Clock,
	m *metrics.Collector,
) LoanService {
	return &loanService{
		tx:           tx,
		reservations: reservations,
		loans:        loans,
		inventory:    inventory,
		waitlist:     waitlist,
		clock:        clk,
		metrics:      m,
	}
}

// Collect turns a pending reservation into an active loan.
func (s *loanService) Collect(ctx context.Context, reservationID int32) domain.Result[*domain.Loan] {
	logger.EnterMethod("loanService.Collect", "reservationID", reservationID)

	if reservationID == 0 {
		return fail[*domain.Loan](ctx, "loanService.Collect", errReservationIDRequired)
	}

	var loan *domain.Loan
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return storeErr("load reservation", err)
		}
		if !res.CanCollect() {
			return domain.ErrReservationNotPending
		}

		existing, err := s.loans.GetByReservationID(ctx, reservationID)
		if err != nil {
			return storeErr("check existing loan", err)
		}
		if existing != nil {
			return domain.ErrAlreadyCollected
		}

		loan, err = s.loans.Create(ctx, reservationID, s.clock.Now())
		if err != nil {
			return storeErr("create loan", err)
		}
		return s.setReservationStatus(ctx, reservationID, domain.ReservationStatusCollected)
	})
	if err != nil {
		return fail[*domain.Loan](ctx, "loanService.Collect", err)
	}

	s.metrics.RecordLoanTransition("collected")
	logger.ExitMethod("loanService.Collect", "reservationID", reservationID, "loanID", loan.ID)
	return domain.OK(loan, "Reservation collected successfully")
}

// ReturnLoan closes a loan, frees its unit and then offers the device to the
// waitlist. The waitlist outcome never changes the result of the return.
func (s *loanService) ReturnLoan(ctx context.Context, loanID int32) domain.Result[domain.ReturnReceipt] {
	logger.EnterMethod("loanService.ReturnLoan", "loanID", loanID)

	if loanID == 0 {
		return fail[domain.ReturnReceipt](ctx, "loanService.ReturnLoan", errLoanIDRequired)
	}

	var deviceID int32
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		lr, err := s.loans.GetWithReservation(ctx, loanID)
		if err != nil {
			return storeErr("load loan", err)
		}
		if !lr.Loan.Active() {
			return domain.ErrLoanAlreadyReturned
		}
		deviceID = lr.Reservation.DeviceID

		if _, err := s.loans.SetReturned(ctx, loanID, s.clock.Now()); err != nil {
			return storeErr("mark loan returned", err)
		}

		rows, err := s.inventory.SetAvailable(ctx, lr.Reservation.InventoryID, true)
		if err != nil {
			return storeErr("free inventory unit", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: inventory unit %d missing", domain.ErrOperationFailed, lr.Reservation.InventoryID)
		}

		return s.setReservationStatus(ctx, lr.Reservation.ID, domain.ReservationStatusReturned)
	})
	if err != nil {
		return fail[domain.ReturnReceipt](ctx, "loanService.ReturnLoan", err)
	}

	s.metrics.RecordLoanTransition("returned")
	s.advanceWaitlist(context.WithoutCancel(ctx), deviceID)

	logger.ExitMethod("loanService.ReturnLoan", "loanID", loanID, "deviceID", deviceID)
	return domain.OK(domain.ReturnReceipt{Message: msgLoanReturned}, msgLoanReturned)
}

func (s *loanService) advanceWaitlist(ctx context.Context, deviceID int32) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Waitlist advance panicked",
				"device_id", deviceID,
				"status", notify.AdvanceFailed,
				"panic", r)
		}
	}()

	result := s.waitlist.NotifyNext(ctx, deviceID)
	if result.Status == notify.AdvanceFailed {
		logger.WarnContext(ctx, "Device returned but waitlist was not notified",
			"device_id", deviceID,
			"error", result.Err)
	}
}

func (s *loanService) GetAllLoans(ctx context.Context, page, pageSize int32) domain.Result[*domain.PaginatedLoans] {
	page, pageSize = domain.NormalizePage(page, pageSize)

	views, total, err := s.loans.ListViews(ctx, page, pageSize)
	if err != nil {
		return fail[*domain.PaginatedLoans](ctx, "loanService.GetAllLoans", storeErr("list loans", err))
	}
	return domain.OK(domain.NewPaginatedLoans(views, page, pageSize, total), "Loans retrieved successfully")
}

func (s *loanService) GetLoansByUserID(ctx context.Context, userID, page, pageSize int32) domain.Result[*domain.PaginatedLoans] {
	if userID == 0 {
		return fail[*domain.PaginatedLoans](ctx, "loanService.GetLoansByUserID", errUserIDRequired)
	}
	page, pageSize = domain.NormalizePage(page, pageSize)

	views, total, err := s.loans.ListViewsByUser(ctx, userID, page, pageSize)
	if err != nil {
		return fail[*domain.PaginatedLoans](ctx, "loanService.GetLoansByUserID", storeErr("list user loans", err))
	}
	return domain.OK(domain.NewPaginatedLoans(views, page, pageSize, total), "Loans retrieved successfully")
}

func (s *loanService) setReservationStatus(ctx context.Context, id int32, status domain.ReservationStatus) error {
	rows, err := s.reservations.SetStatus(ctx, id, status)
	if err != nil {
		return storeErr("update reservation status", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: reservation %d not updated", domain.ErrOperationFailed, id)
	}
	return nil
}

// storeErr passes domain errors through and marks everything else as a
// failed operation.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrOperationFailed, op, err)
}

func fail[T any](ctx context.Context, method string, err error) domain.Result[T] {
	logger.ExitMethodWithError(method, err)
	if domain.CodeOf(err) == domain.CodeGeneralError {
		logger.ErrorContext(ctx, "Loan operation failed", "method", method, "error", err)
	}
	return domain.Fail[T](err)
}
