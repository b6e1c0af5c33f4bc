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

type waitlistRepository struct {
	db *sql.DB
}

func NewWaitlistRepository(db *sql.DB) repository.WaitlistRepository {
	return &waitlistRepository{db: db}
}

// NextEntry skips rows another transaction already holds, so two processes
// advancing the same device never pick the same entry.
func (r *waitlistRepository) NextEntry(ctx context.Context, deviceID int32) (*domain.WaitlistEntry, error) {
	query := `SELECT id, user_id, device_id, added_at, is_notified, notified_at
	            FROM waitlist
	           WHERE device_id = $1 AND is_notified = FALSE
	           ORDER BY added_at ASC, id ASC
	           LIMIT 1`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	logger.DatabaseCall("SELECT", "waitlist", "deviceID", deviceID)

	e := &domain.WaitlistEntry{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, deviceID).
		Scan(&e.ID, &e.UserID, &e.DeviceID, &e.AddedAt, &e.IsNotified, &e.NotifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "deviceID", deviceID)
		return nil, fmt.Errorf("next waitlist entry for device %d: %w", deviceID, err)
	}
	return e, nil
}

func (r *waitlistRepository) MarkNotified(ctx context.Context, id int32, at time.Time) (int64, error) {
	query := `UPDATE waitlist SET is_notified = TRUE, notified_at = $1 WHERE id = $2 AND is_notified = FALSE`
	logger.DatabaseCall("UPDATE", "waitlist", "entryID", id)

	result, err := conn(ctx, r.db).ExecContext(ctx, query, at, id)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "entryID", id)
		return 0, fmt.Errorf("mark waitlist entry %d notified: %w", id, err)
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err, "entryID", id)
	return rows, err
}

func (r *waitlistRepository) DevicesAwaitingNotification(ctx context.Context) ([]int32, error) {
	query := `SELECT DISTINCT w.device_id
	            FROM waitlist w
	           WHERE w.is_notified = FALSE
	             AND EXISTS (SELECT 1 FROM inventory i WHERE i.device_id = w.device_id AND i.is_available = TRUE)
	           ORDER BY w.device_id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list devices awaiting notification: %w", err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
