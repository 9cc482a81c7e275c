// Package purger implements the bulk purge pipeline: a draining loop that
// discovers purge-eligible photo records, deletes their blobs from the
// network in bounded-concurrency batches, and removes the records whose blob
// deletion was confirmed. Unconfirmed blobs keep their records so the next
// round retries them; after too many failed rounds a reference is quarantined
// instead of being retried forever.
package purger

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/photovault/internal/logging"
	"github.com/dmitrijs2005/photovault/internal/server/models"
)

// Source is the metadata side of the pipeline: candidate discovery and
// record removal.
type Source interface {
	// Candidates returns up to limit purge-eligible records with their blob
	// references.
	Candidates(ctx context.Context, limit int) ([]*models.PurgeCandidate, error)
	// DeleteRecords removes the records whose primary file reference is in
	// fileIDs and reports how many were removed.
	DeleteRecords(ctx context.Context, fileIDs []string) (int64, error)
}

// BlobDeleter is the blob-network side: one batch deletion call.
type BlobDeleter interface {
	DeleteFiles(ctx context.Context, ids []string) (*DeleteFilesResult, error)
}

// DeleteFilesResult is the per-blob outcome of a deletion request.
type DeleteFilesResult struct {
	Confirmed    []string
	NotConfirmed []string
}

// Purger drives the draining loop.
type Purger struct {
	source      Source
	blobs       BlobDeleter
	status      *Status
	logger      logging.Logger
	maxAttempts int

	attempts    map[string]int
	quarantined map[string]struct{}
}

// New constructs a Purger. maxAttempts bounds how many failed rounds a blob
// reference may accumulate before it is quarantined; zero or negative
// disables quarantining.
func New(source Source, blobs BlobDeleter, status *Status, logger logging.Logger, maxAttempts int) *Purger {
	return &Purger{
		source:      source,
		blobs:       blobs,
		status:      status,
		logger:      logger,
		maxAttempts: maxAttempts,
		attempts:    make(map[string]int),
		quarantined: make(map[string]struct{}),
	}
}

type chunkResult struct {
	confirmed []string
	err       error
}

// Run executes purge rounds until a fetch returns no workable candidates or
// the context is cancelled. limit is the number of candidates fetched per
// round; concurrency is the chunk size for blob-deletion calls, with all
// chunks of a round in flight together. Errors from the metadata store
// terminate the run; blob-network failures are recorded and retried by
// redrive.
func (p *Purger) Run(ctx context.Context, limit, concurrency int) error {
	p.status.Start()
	defer p.status.Stop(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates, err := p.source.Candidates(ctx, limit)
		if err != nil {
			return fmt.Errorf("fetching purge candidates: %w", err)
		}

		workable := p.filterQuarantined(candidates)
		if len(workable) == 0 {
			if len(candidates) > 0 {
				p.logger.Warn(ctx, "only quarantined candidates remain, stopping",
					"quarantined", len(candidates))
			}
			return nil
		}

		if err := p.purgeRound(ctx, workable, concurrency); err != nil {
			return err
		}
	}
}

func (p *Purger) purgeRound(ctx context.Context, candidates []*models.PurgeCandidate, concurrency int) error {
	var refs []string
	for _, c := range candidates {
		refs = append(refs, c.BlobRefs()...)
	}

	chunks := chunk(refs, concurrency)
	results := make([]chunkResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, ids := range chunks {
		g.Go(func() error {
			res, err := p.blobs.DeleteFiles(gctx, ids)
			if err != nil {
				results[i] = chunkResult{err: err}
				return nil
			}
			results[i] = chunkResult{confirmed: res.Confirmed}
			return nil
		})
	}
	// Workers never return errors; confirmations are aggregated only after
	// every chunk has settled.
	_ = g.Wait()

	confirmed := make(map[string]struct{})
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			p.logger.Warn(ctx, "blob deletion chunk failed", "err", res.err.Error())
			continue
		}
		for _, id := range res.confirmed {
			confirmed[id] = struct{}{}
		}
	}
	p.status.AddRequests(len(chunks), failed)

	var removable []string
	for _, c := range candidates {
		if _, ok := confirmed[c.FileID]; ok {
			removable = append(removable, c.FileID)
			delete(p.attempts, c.FileID)
		} else {
			p.noteFailure(ctx, c.FileID)
		}
	}

	if len(removable) > 0 {
		n, err := p.source.DeleteRecords(ctx, removable)
		if err != nil {
			return fmt.Errorf("deleting purged records: %w", err)
		}
		p.status.AddPurged(n)
	}

	return nil
}

func (p *Purger) filterQuarantined(candidates []*models.PurgeCandidate) []*models.PurgeCandidate {
	workable := make([]*models.PurgeCandidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := p.quarantined[c.FileID]; ok {
			continue
		}
		workable = append(workable, c)
	}
	return workable
}

func (p *Purger) noteFailure(ctx context.Context, fileID string) {
	if p.maxAttempts <= 0 {
		return
	}
	p.attempts[fileID]++
	if p.attempts[fileID] >= p.maxAttempts {
		p.quarantined[fileID] = struct{}{}
		p.status.AddQuarantined(1)
		p.logger.Error(ctx, "blob reference quarantined after repeated failures",
			"fileId", fileID, "attempts", p.attempts[fileID])
	}
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
