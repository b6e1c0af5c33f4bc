package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/repository"
)

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

// GetByID locks the row when called inside a transaction.
func (r *reservationRepository) GetByID(ctx context.Context, id int32) (*domain.Reservation, error) {
	query := `SELECT id, user_id, device_id, inventory_id, reserved_at, due_date, status FROM reservations WHERE id = $1`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	logger.DatabaseCall("SELECT", "reservations", "reservationID", id)

	res := &domain.Reservation{}
	var status string
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).
		Scan(&res.ID, &res.UserID, &res.DeviceID, &res.InventoryID, &res.ReservedAt, &res.DueDate, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "reservationID", id)
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	res.Status = domain.ReservationStatus(status)
	return res, nil
}

func (r *reservationRepository) SetStatus(ctx context.Context, id int32, status domain.ReservationStatus) (int64, error) {
	query := `UPDATE reservations SET status = $1 WHERE id = $2`
	logger.DatabaseCall("UPDATE", "reservations", "reservationID", id, "status", status)

	result, err := conn(ctx, r.db).ExecContext(ctx, query, string(status), id)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "reservationID", id)
		return 0, fmt.Errorf("set reservation %d status: %w", id, err)
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err, "reservationID", id)
	return rows, err
}
