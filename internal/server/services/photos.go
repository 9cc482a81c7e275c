// Package services contains server-side business logic. This file implements
// PhotoService: upload reconciliation, the photo lifecycle state machine and
// the batch existence matcher.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photovault/internal/common"
	"github.com/dmitrijs2005/photovault/internal/dbx"
	"github.com/dmitrijs2005/photovault/internal/logging"
	sc "github.com/dmitrijs2005/photovault/internal/server/config"
	"github.com/dmitrijs2005/photovault/internal/server/models"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/photos"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/repomanager"
)

// PhotoSubmission is an incoming upload: the full photo attributes plus the
// network bucket the client believes it uploaded into.
type PhotoSubmission struct {
	UserID          string
	DeviceID        string
	Name            string
	Type            string
	Hash            string
	TakenAt         time.Time
	Size            int64
	Width           int
	Height          int
	Duration        *float64
	ItemType        models.PhotoItemType
	FileID          string
	PreviewID       string
	Previews        []models.Preview
	NetworkBucketID string
}

// PhotoExistence is one entry of a batch existence check: the lookup key,
// whether a record matched and, if so, the full stored record.
type PhotoExistence struct {
	photos.LookupKey
	Exists bool
	Photo  *models.Photo
}

// PhotoService implements reconciliation of incoming uploads, the lifecycle
// state machine with its usage accounting, and the existence batch matcher.
type PhotoService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	strictLifecycle bool
	logger          logging.Logger
}

// NewPhotoService constructs a PhotoService using repositories and server config.
func NewPhotoService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger) *PhotoService {
	return &PhotoService{
		db:              db,
		repomanager:     m,
		strictLifecycle: cfg.StrictLifecycle,
		logger:          logger,
	}
}

// SavePhoto reconciles an incoming submission against the store. Outcomes:
//   - no record for (userID, name, takenAt): the submission's bucket is
//     checked against the owner's bucket and a new record is created with its
//     size charged to the owner's gallery usage, both in one transaction;
//   - a record exists with the same hash: common.ErrorAlreadyExists, the
//     upload is a true duplicate;
//   - a record exists with a different hash: the stored hash is corrected in
//     place and the record returned; no usage change, no new bytes were
//     stored.
func (s *PhotoService) SavePhoto(ctx context.Context, sub *PhotoSubmission) (*models.Photo, error) {
	photosRepo := s.repomanager.Photos(s.db)

	takenAt := sub.TakenAt.UTC()
	existing, err := photosRepo.GetOne(ctx, photos.Filter{
		UserID:  sub.UserID,
		Name:    sub.Name,
		TakenAt: &takenAt,
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("looking up photo: %w", err)
	}
	if existing != nil {
		return s.patchHash(ctx, existing, sub.Hash)
	}

	created, err := s.createPhoto(ctx, sub)
	if errors.Is(err, common.ErrorAlreadyExists) {
		// Lost the insert race on (user_id, name, taken_at): re-read and fall
		// into the hash-patch branch.
		existing, rerr := photosRepo.GetOne(ctx, photos.Filter{
			UserID:  sub.UserID,
			Name:    sub.Name,
			TakenAt: &takenAt,
		})
		if rerr != nil {
			return nil, fmt.Errorf("re-reading photo after insert conflict: %w", rerr)
		}
		return s.patchHash(ctx, existing, sub.Hash)
	}
	return created, err
}

func (s *PhotoService) patchHash(ctx context.Context, existing *models.Photo, hash string) (*models.Photo, error) {
	if existing.Hash == hash {
		return nil, common.ErrorAlreadyExists
	}

	photosRepo := s.repomanager.Photos(s.db)
	if err := photosRepo.UpdateByID(ctx, existing.ID, photos.Patch{Hash: &hash}); err != nil {
		return nil, fmt.Errorf("patching photo hash: %w", err)
	}
	existing.Hash = hash
	return existing, nil
}

func (s *PhotoService) createPhoto(ctx context.Context, sub *PhotoSubmission) (*models.Photo, error) {
	owner, err := s.repomanager.Users(s.db).GetByBucket(ctx, sub.NetworkBucketID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorWrongBucketID
		}
		return nil, fmt.Errorf("resolving bucket owner: %w", err)
	}

	photo := &models.Photo{
		UserID:          sub.UserID,
		DeviceID:        sub.DeviceID,
		Name:            sub.Name,
		Type:            sub.Type,
		Hash:            sub.Hash,
		TakenAt:         sub.TakenAt.UTC(),
		Size:            sub.Size,
		Width:           sub.Width,
		Height:          sub.Height,
		Duration:        sub.Duration,
		ItemType:        sub.ItemType,
		FileID:          sub.FileID,
		PreviewID:       sub.PreviewID,
		Previews:        sub.Previews,
		Status:          models.PhotoStatusExists,
		StatusChangedAt: time.Now().UTC(),
	}

	// Record insert and usage charge commit as one step, so a photo is
	// charged exactly once or not at all.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Photos(tx).Create(ctx, photo)
		if err != nil {
			return err
		}
		photo = created
		return s.repomanager.Users(tx).UpdateGalleryUsage(ctx, owner.ID, photo.Size)
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("creating photo: %w", err)
	}

	return photo, nil
}

// TrashPhoto moves an existing photo to the trash, shifting its size from
// gallery to trash usage. Records already trashed or deleted are left alone.
// A missing record is a silent no-op unless strict lifecycle is configured.
func (s *PhotoService) TrashPhoto(ctx context.Context, photoID string) error {
	photo, err := s.loadForTransition(ctx, photoID)
	if photo == nil || err != nil {
		return err
	}
	if photo.Status != models.PhotoStatusExists {
		return nil
	}

	now := time.Now().UTC()
	trashed := models.PhotoStatusTrashed
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.repomanager.Photos(tx).UpdateByID(ctx, photo.ID, photos.Patch{
			Status:          &trashed,
			StatusChangedAt: &now,
		})
		if err != nil {
			return err
		}
		usersTx := s.repomanager.Users(tx)
		if err := usersTx.UpdateGalleryUsage(ctx, photo.UserID, -photo.Size); err != nil {
			return err
		}
		return usersTx.UpdateTrashUsage(ctx, photo.UserID, photo.Size)
	})
}

// DeletePhoto marks a photo as deleted, reversing whichever usage counter its
// current status contributes to. The record itself is kept: it becomes a
// candidate for the purge pipeline. Records already deleted are left alone.
// A missing record is a silent no-op unless strict lifecycle is configured.
func (s *PhotoService) DeletePhoto(ctx context.Context, photoID string) error {
	photo, err := s.loadForTransition(ctx, photoID)
	if photo == nil || err != nil {
		return err
	}
	if photo.Status == models.PhotoStatusDeleted {
		return nil
	}

	now := time.Now().UTC()
	deleted := models.PhotoStatusDeleted
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.repomanager.Photos(tx).UpdateByID(ctx, photo.ID, photos.Patch{
			Status:          &deleted,
			StatusChangedAt: &now,
		})
		if err != nil {
			return err
		}
		usersTx := s.repomanager.Users(tx)
		if photo.Status == models.PhotoStatusTrashed {
			return usersTx.UpdateTrashUsage(ctx, photo.UserID, -photo.Size)
		}
		return usersTx.UpdateGalleryUsage(ctx, photo.UserID, -photo.Size)
	})
}

func (s *PhotoService) loadForTransition(ctx context.Context, photoID string) (*models.Photo, error) {
	photo, err := s.repomanager.Photos(s.db).GetByID(ctx, photoID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if s.strictLifecycle {
				return nil, common.ErrorNotFound
			}
			s.logger.Warn(ctx, "lifecycle transition on missing photo", "photoId", photoID)
			return nil, nil
		}
		return nil, fmt.Errorf("loading photo: %w", err)
	}
	return photo, nil
}

// PhotosExist reports, for each lookup key, whether the user already has a
// matching record. Trashed and deleted records still count as existing: the
// client must not re-upload them. At most common.MaxExistenceLookups keys are
// accepted per call; all of them are resolved in a single store round trip.
func (s *PhotoService) PhotosExist(ctx context.Context, userUUID string, lookups []photos.LookupKey) ([]PhotoExistence, error) {
	if len(lookups) > common.MaxExistenceLookups {
		return nil, common.ErrorTooManyLookups
	}

	user, err := s.repomanager.Users(s.db).GetByUuid(ctx, userUUID)
	if err != nil {
		return nil, err
	}

	matches, err := s.repomanager.Photos(s.db).GetByMultipleWhere(ctx, user.ID, lookups)
	if err != nil {
		return nil, fmt.Errorf("matching photos: %w", err)
	}

	result := make([]PhotoExistence, len(lookups))
	for i, lookup := range lookups {
		result[i] = PhotoExistence{LookupKey: lookup}
		for _, match := range matches {
			if match.Name == lookup.Name && match.Hash == lookup.Hash &&
				match.TakenAt.Equal(lookup.TakenAt) {
				result[i].Exists = true
				result[i].Photo = match
				break
			}
		}
	}
	return result, nil
}

// GetPhoto returns a single photo record by id.
func (s *PhotoService) GetPhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	return s.repomanager.Photos(s.db).GetByID(ctx, photoID)
}

// ListPhotos returns the user's photos matching the filter, paginated.
func (s *PhotoService) ListPhotos(ctx context.Context, filter photos.Filter, skip, limit int) ([]*models.Photo, error) {
	return s.repomanager.Photos(s.db).Get(ctx, filter, skip, limit)
}

// GetPhotosByIDs returns the photos with the given ids, paginated.
func (s *PhotoService) GetPhotosByIDs(ctx context.Context, ids []string, skip, limit int) ([]*models.Photo, error) {
	return s.repomanager.Photos(s.db).GetByIDs(ctx, ids, skip, limit)
}

// Usage recomputes the user's storage usage from the records themselves
// (sum of size over non-deleted records).
func (s *PhotoService) Usage(ctx context.Context, userID string) (int64, error) {
	return s.repomanager.Photos(s.db).GetUsage(ctx, userID)
}
