// This file implements UserService: account lookup and the multi-step user
// initialization flow with explicit rollback of partial provisioning.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/photovault/internal/common"
	"github.com/dmitrijs2005/photovault/internal/logging"
	"github.com/dmitrijs2005/photovault/internal/server/models"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/repomanager"
)

// BucketProvisioner creates and removes per-user buckets in the blob network.
type BucketProvisioner interface {
	Create(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

// DeviceInfo identifies the device a user initializes from.
type DeviceInfo struct {
	Mac  string
	Name string
}

// UserService provides account lookups and user provisioning.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	buckets     BucketProvisioner
	logger      logging.Logger
}

// NewUserService constructs a UserService.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, buckets BucketProvisioner, logger logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, buckets: buckets, logger: logger}
}

// GetByUuid returns the user with the given external uuid.
func (s *UserService) GetByUuid(ctx context.Context, userUUID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByUuid(ctx, userUUID)
}

// InitUser resolves or provisions the user for the given uuid: blob-network
// bucket, user record, device record. The device MAC must not belong to
// another user. Each completed step registers a compensation; on failure the
// compensations run in reverse order and their failures are accumulated into
// the returned error.
func (s *UserService) InitUser(ctx context.Context, userUUID string, device DeviceInfo) (*models.User, error) {
	usersRepo := s.repomanager.Users(s.db)

	existing, err := usersRepo.GetByUuid(ctx, userUUID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	saga := NewSaga()
	fail := func(cause error) (*models.User, error) {
		cause = fmt.Errorf("initializing user %s: %w", userUUID, cause)
		if rbErr := saga.Rollback(ctx); rbErr != nil {
			return nil, errors.Join(cause, rbErr)
		}
		return nil, cause
	}

	bucketID, err := s.buckets.Create(ctx, "photos-"+userUUID)
	if err != nil {
		return fail(err)
	}
	saga.Register("bucket creation", func(ctx context.Context) error {
		return s.buckets.Delete(ctx, bucketID)
	})

	user, err := usersRepo.Create(ctx, &models.User{UUID: userUUID, BucketID: bucketID})
	if err != nil {
		return fail(err)
	}
	saga.Register("user creation", func(ctx context.Context) error {
		return usersRepo.DeleteByID(ctx, user.ID)
	})

	devicesRepo := s.repomanager.Devices(s.db)
	registered, err := devicesRepo.GetByMac(ctx, device.Mac)
	switch {
	case err == nil:
		if registered.UserID != user.ID {
			return fail(common.ErrorForbidden)
		}
	case errors.Is(err, common.ErrorNotFound):
		if _, err := devicesRepo.Create(ctx, &models.Device{
			UserID: user.ID,
			Mac:    device.Mac,
			Name:   device.Name,
		}); err != nil {
			return fail(err)
		}
	default:
		return fail(err)
	}

	s.logger.Info(ctx, "user initialized", "uuid", userUUID, "bucket", bucketID)
	return user, nil
}

// RemoveUser deletes the user record.
func (s *UserService) RemoveUser(ctx context.Context, userID string) error {
	return s.repomanager.Users(s.db).DeleteByID(ctx, userID)
}
