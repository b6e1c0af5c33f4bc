package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/repository"
)

type deviceRepository struct {
	db *sql.DB
}

func NewDeviceRepository(db *sql.DB) repository.DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) GetByID(ctx context.Context, id int32) (*domain.Device, error) {
	d := &domain.Device{}
	query := `SELECT id, name, category FROM devices WHERE id = $1`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Name, &d.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device %d: %w", id, err)
	}
	return d, nil
}
