package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/repository"
)

type loanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) repository.LoanRepository {
	return &loanRepository{db: db}
}

const loanViewSelect = `SELECT l.id, l.reservation_id, l.collected_at, l.returned_at,
       r.id, r.reserved_at, r.due_date, r.status,
       u.id, u.name, u.email,
       d.id, d.name, d.category,
       i.id, i.is_available
  FROM loans l
  JOIN reservations r ON r.id = l.reservation_id
  JOIN users u ON u.id = r.user_id
  JOIN devices d ON d.id = r.device_id
  JOIN inventory i ON i.id = r.inventory_id`

func (r *loanRepository) Create(ctx context.Context, reservationID int32, collectedAt time.Time) (*domain.Loan, error) {
	logger.EnterMethod("loanRepository.Create", "reservationID", reservationID)

	query := `INSERT INTO loans (reservation_id, collected_at) VALUES ($1, $2) RETURNING id`
	logger.DatabaseCall("INSERT", "loans", "reservationID", reservationID)

	loan := &domain.Loan{ReservationID: reservationID, CollectedAt: collectedAt}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, reservationID, collectedAt).Scan(&loan.ID)
	logger.DatabaseResult("INSERT", 1, err, "loanID", loan.ID)
	if err != nil {
		logger.ExitMethodWithError("loanRepository.Create", err, "reservationID", reservationID)
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyCollected
		}
		return nil, fmt.Errorf("create loan: %w", err)
	}

	logger.ExitMethod("loanRepository.Create", "loanID", loan.ID)
	return loan, nil
}

// SetReturned only touches a loan that is still active.
func (r *loanRepository) SetReturned(ctx context.Context, id int32, at time.Time) (*domain.Loan, error) {
	query := `UPDATE loans SET returned_at = $1 WHERE id = $2 AND returned_at IS NULL
	          RETURNING id, reservation_id, collected_at, returned_at`
	logger.DatabaseCall("UPDATE", "loans", "loanID", id)

	loan := &domain.Loan{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, at, id).
		Scan(&loan.ID, &loan.ReservationID, &loan.CollectedAt, &loan.ReturnedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLoanAlreadyReturned
	}
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "loanID", id)
		return nil, fmt.Errorf("mark loan %d returned: %w", id, err)
	}
	logger.DatabaseResult("UPDATE", 1, nil, "loanID", id)
	return loan, nil
}

func (r *loanRepository) GetByReservationID(ctx context.Context, reservationID int32) (*domain.Loan, error) {
	query := `SELECT id, reservation_id, collected_at, returned_at FROM loans WHERE reservation_id = $1`

	loan := &domain.Loan{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, reservationID).
		Scan(&loan.ID, &loan.ReservationID, &loan.CollectedAt, &loan.ReturnedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get loan by reservation %d: %w", reservationID, err)
	}
	return loan, nil
}

// GetWithReservation locks the loan row when called inside a transaction.
func (r *loanRepository) GetWithReservation(ctx context.Context, id int32) (*domain.LoanWithReservation, error) {
	query := `SELECT l.id, l.reservation_id, l.collected_at, l.returned_at,
	                 r.id, r.user_id, r.device_id, r.inventory_id, r.reserved_at, r.due_date, r.status
	            FROM loans l JOIN reservations r ON r.id = l.reservation_id
	           WHERE l.id = $1`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE OF l`
	}
	logger.DatabaseCall("SELECT", "loans", "loanID", id)

	var (
		lr     domain.LoanWithReservation
		status string
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&lr.Loan.ID, &lr.Loan.ReservationID, &lr.Loan.CollectedAt, &lr.Loan.ReturnedAt,
		&lr.Reservation.ID, &lr.Reservation.UserID, &lr.Reservation.DeviceID, &lr.Reservation.InventoryID,
		&lr.Reservation.ReservedAt, &lr.Reservation.DueDate, &status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "loanID", id)
		return nil, fmt.Errorf("get loan %d: %w", id, err)
	}
	lr.Reservation.Status = domain.ReservationStatus(status)
	return &lr, nil
}

func (r *loanRepository) ListViews(ctx context.Context, page, pageSize int32) ([]domain.LoanView, int32, error) {
	var count int32
	if err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT count(*) FROM loans`).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}

	query := loanViewSelect + ` ORDER BY l.collected_at DESC, l.id DESC LIMIT $1 OFFSET $2`
	views, err := r.queryViews(ctx, query, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, 0, err
	}
	return views, count, nil
}

func (r *loanRepository) ListViewsByUser(ctx context.Context, userID, page, pageSize int32) ([]domain.LoanView, int32, error) {
	var count int32
	countQuery := `SELECT count(*) FROM loans l JOIN reservations r ON r.id = l.reservation_id WHERE r.user_id = $1`
	if err := conn(ctx, r.db).QueryRowContext(ctx, countQuery, userID).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count loans for user %d: %w", userID, err)
	}

	query := loanViewSelect + ` WHERE r.user_id = $1 ORDER BY l.collected_at DESC, l.id DESC LIMIT $2 OFFSET $3`
	views, err := r.queryViews(ctx, query, userID, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, 0, err
	}
	return views, count, nil
}

func (r *loanRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.LoanView, error) {
	query := loanViewSelect + ` WHERE l.returned_at IS NULL AND r.due_date < $1 ORDER BY r.due_date ASC`
	return r.queryViews(ctx, query, now)
}

func (r *loanRepository) queryViews(ctx context.Context, query string, args ...any) ([]domain.LoanView, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	views := []domain.LoanView{}
	for rows.Next() {
		var (
			v      domain.LoanView
			status string
		)
		if err := rows.Scan(
			&v.Loan.ID, &v.Loan.ReservationID, &v.Loan.CollectedAt, &v.Loan.ReturnedAt,
			&v.Reservation.ID, &v.Reservation.ReservedAt, &v.Reservation.DueDate, &status,
			&v.User.ID, &v.User.Name, &v.User.Email,
			&v.Device.ID, &v.Device.Name, &v.Device.Category,
			&v.Inventory.ID, &v.Inventory.IsAvailable,
		); err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		v.Reservation.Status = domain.ReservationStatus(status)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return views, nil
}
