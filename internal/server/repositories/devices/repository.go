package devices

import (
	"context"

	"github.com/dmitrijs2005/photovault/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Device, error)
	GetByMac(ctx context.Context, mac string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) (*models.Device, error)
	DeleteByID(ctx context.Context, id string) error
}
