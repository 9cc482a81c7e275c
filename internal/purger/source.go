package purger

import (
	"context"

	"github.com/dmitrijs2005/photovault/internal/server/models"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/photos"
)

// StoreSource adapts the photos repository to the pipeline's Source.
type StoreSource struct {
	photos photos.Repository
}

// NewStoreSource constructs a StoreSource over the given repository.
func NewStoreSource(repo photos.Repository) *StoreSource {
	return &StoreSource{photos: repo}
}

func (s *StoreSource) Candidates(ctx context.Context, limit int) ([]*models.PurgeCandidate, error) {
	return s.photos.GetPurgeCandidates(ctx, limit)
}

func (s *StoreSource) DeleteRecords(ctx context.Context, fileIDs []string) (int64, error) {
	return s.photos.DeleteManyByFileIDs(ctx, fileIDs)
}
