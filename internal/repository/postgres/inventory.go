package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/repository"
)

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) repository.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) SetAvailable(ctx context.Context, id int32, available bool) (int64, error) {
	query := `UPDATE inventory SET is_available = $1 WHERE id = $2`
	logger.DatabaseCall("UPDATE", "inventory", "inventoryID", id, "available", available)

	result, err := conn(ctx, r.db).ExecContext(ctx, query, available, id)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "inventoryID", id)
		return 0, fmt.Errorf("set inventory %d availability: %w", id, err)
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err, "inventoryID", id)
	return rows, err
}
