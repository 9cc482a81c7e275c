// Package users provides the PostgreSQL-backed repository for user accounts
// and their storage-usage counters.
package users

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

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) getOne(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(
		`SELECT id, uuid, bucket_id, gallery_usage, trash_usage, created_at FROM users WHERE %s = $1`,
		column)

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.UUID, &user.BucketID, &user.GalleryUsage, &user.TrashUsage, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByUuid returns the user with the given external uuid or common.ErrorNotFound.
func (r *PostgresRepository) GetByUuid(ctx context.Context, userUUID string) (*models.User, error) {
	return r.getOne(ctx, "uuid", userUUID)
}

// GetByBucket returns the user owning the given blob-network bucket or
// common.ErrorNotFound.
func (r *PostgresRepository) GetByBucket(ctx context.Context, bucketID string) (*models.User, error) {
	return r.getOne(ctx, "bucket_id", bucketID)
}

// Create inserts a new user with zeroed usage counters.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, uuid, bucket_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), user.UUID, user.BucketID).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// DeleteByID removes a user record.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) updateUsage(ctx context.Context, column, userID string, delta int64) error {
	query := fmt.Sprintf(
		`UPDATE users SET %s = GREATEST(%s + $1, 0) WHERE id = $2`,
		column, column)

	res, err := r.db.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// UpdateGalleryUsage adds delta to the gallery usage counter, clamped at zero.
func (r *PostgresRepository) UpdateGalleryUsage(ctx context.Context, userID string, delta int64) error {
	return r.updateUsage(ctx, "gallery_usage", userID, delta)
}

// UpdateTrashUsage adds delta to the trash usage counter, clamped at zero.
func (r *PostgresRepository) UpdateTrashUsage(ctx context.Context, userID string, delta int64) error {
	return r.updateUsage(ctx, "trash_usage", userID, delta)
}
