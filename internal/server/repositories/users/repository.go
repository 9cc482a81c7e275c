package users

import (
	"context"

	"github.com/dmitrijs2005/photovault/internal/server/models"
)

type Repository interface {
	GetByUuid(ctx context.Context, uuid string) (*models.User, error)
	GetByBucket(ctx context.Context, bucketID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	DeleteByID(ctx context.Context, id string) error
	// UpdateGalleryUsage adds delta (which may be negative) to the user's
	// gallery usage counter.
	UpdateGalleryUsage(ctx context.Context, userID string, delta int64) error
	// UpdateTrashUsage adds delta (which may be negative) to the user's trash
	// usage counter.
	UpdateTrashUsage(ctx context.Context, userID string, delta int64) error
}
