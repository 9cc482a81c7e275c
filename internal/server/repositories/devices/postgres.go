// Package devices provides the PostgreSQL-backed repository for upload
// devices.
package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/photovault/internal/common"
	"github.com/dmitrijs2005/photovault/internal/dbx"
	"github.com/dmitrijs2005/photovault/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements device storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) getOne(ctx context.Context, column, value string) (*models.Device, error) {
	query := fmt.Sprintf(
		`SELECT id, user_id, mac, name, created_at FROM devices WHERE %s = $1`, column)

	device := &models.Device{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&device.ID, &device.UserID, &device.Mac, &device.Name, &device.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return device, nil
}

// GetByID returns the device with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Device, error) {
	return r.getOne(ctx, "id", id)
}

// GetByMac returns the device with the given MAC address or common.ErrorNotFound.
func (r *PostgresRepository) GetByMac(ctx context.Context, mac string) (*models.Device, error) {
	return r.getOne(ctx, "mac", mac)
}

// Create inserts a new device.
func (r *PostgresRepository) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	query := `
		INSERT INTO devices (id, user_id, mac, name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), device.UserID, device.Mac, device.Name).
		Scan(&device.ID, &device.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return device, nil
}

// DeleteByID removes a device record.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
