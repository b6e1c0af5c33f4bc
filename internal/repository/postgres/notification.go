package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/repository"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.NotificationRecord) error {
	logger.EnterMethod("notificationRepository.Create", "userID", n.UserID, "channel", n.Channel, "status", n.Status)

	attrs, err := json.Marshal(n.Attributes)
	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "reason", "failed to marshal attributes")
		return err
	}
	logger.Debug("Notification attributes marshaled", "attributesJSON", string(attrs))

	query := `INSERT INTO notifications (user_id, channel, subject, body, status, error, attributes, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	logger.DatabaseCall("INSERT", "notifications", "userID", n.UserID, "status", n.Status)

	err = conn(ctx, r.db).QueryRowContext(ctx, query,
		n.UserID, n.Channel, n.Subject, n.Body, string(n.Status), n.Error, attrs, n.CreatedAt,
	).Scan(&n.ID)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "userID", n.UserID)
	} else {
		logger.ExitMethod("notificationRepository.Create", "notificationID", n.ID)
	}
	return err
}
