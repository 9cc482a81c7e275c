package photos

import (
	"context"
	"time"

	"github.com/dmitrijs2005/photovault/internal/server/models"
)

// Filter narrows photo listings. Zero-valued fields are ignored.
type Filter struct {
	UserID   string
	DeviceID string
	Name     string
	Status   models.PhotoStatus
	TakenAt  *time.Time
}

// Patch is a partial update applied by UpdateByID. Nil fields are left
// untouched.
type Patch struct {
	Hash            *string
	Status          *models.PhotoStatus
	StatusChangedAt *time.Time
}

// LookupKey is one (name, takenAt, hash) triple of a batch existence lookup.
type LookupKey struct {
	Name    string
	TakenAt time.Time
	Hash    string
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	Get(ctx context.Context, filter Filter, skip, limit int) ([]*models.Photo, error)
	GetByIDs(ctx context.Context, ids []string, skip, limit int) ([]*models.Photo, error)
	// GetByMultipleWhere fetches every photo of the user matching at least one
	// of the lookup keys in a single round trip.
	GetByMultipleWhere(ctx context.Context, userID string, keys []LookupKey) ([]*models.Photo, error)
	GetOne(ctx context.Context, filter Filter) (*models.Photo, error)
	Create(ctx context.Context, photo *models.Photo) (*models.Photo, error)
	UpdateByID(ctx context.Context, id string, patch Patch) error
	DeleteByID(ctx context.Context, id string) error
	// DeleteManyByFileIDs removes every record whose primary file reference is
	// in fileIDs and reports the number of records removed.
	DeleteManyByFileIDs(ctx context.Context, fileIDs []string) (int64, error)
	// GetUsage sums the size of the user's non-deleted records.
	GetUsage(ctx context.Context, userID string) (int64, error)
	// GetPurgeCandidates returns up to limit Deleted records with their blob
	// references.
	GetPurgeCandidates(ctx context.Context, limit int) ([]*models.PurgeCandidate, error)
}
