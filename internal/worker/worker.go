// Package worker implements the Indexing Worker's run_once operation: take
// an already-claimed job, load its indexer, dispatch to the right adapter under a deadline,
// and on success persist rows + advance the cursor in one transaction.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"governance-indexer/internal/adapter"
	"governance-indexer/internal/cursor"
	"governance-indexer/internal/models"
	"governance-indexer/internal/repository"
)

// store is the slice of Repository that RunOnce needs, narrowed so a fake
// can stand in for *repository.Repository in tests without touching a
// database.
type store interface {
	GetIndexer(ctx context.Context, id uuid.UUID) (models.Indexer, error)
	SaveIndexerResult(ctx context.Context, indexerID, daoID uuid.UUID, proposals []models.Proposal, votes []models.Vote, newCursor, newSpeed int64) error
	LogIndexingError(ctx context.Context, indexerID, errHash, errMsg string, payload []byte) error
}

// Worker runs claimed jobs to completion. Stateless aside from its injected
// dependencies, so many goroutines can share one Worker.
type Worker struct {
	repo     store
	registry *adapter.Registry
}

func New(repo *repository.Repository, registry *adapter.Registry) *Worker {
	return &Worker{repo: repo, registry: registry}
}

// RunOnce executes one claimed job per spec.md §4.3. It never returns an
// error for an adapter failure — that's recorded via LogIndexingError and
// the speed adjustment. Errors returned are an undecodable job payload, an
// unknown job kind, or a Repository/transaction error.
func (w *Worker) RunOnce(ctx context.Context, job repository.ClaimedJob) error {
	var indexerID uuid.UUID
	var fromIndex int64

	switch job.Kind {
	case models.JobProposals:
		var payload models.ProposalsJobPayload
		if err := json.Unmarshal(job.Job, &payload); err != nil {
			return fmt.Errorf("decode proposals job payload: %w", err)
		}
		indexerID, fromIndex = payload.IndexerID, payload.FromIndex
	case models.JobVotes:
		var payload models.VotesJobPayload
		if err := json.Unmarshal(job.Job, &payload); err != nil {
			return fmt.Errorf("decode votes job payload: %w", err)
		}
		indexerID, fromIndex = payload.IndexerID, payload.FromIndex
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}

	ix, err := w.repo.GetIndexer(ctx, indexerID)
	if err != nil {
		return fmt.Errorf("load indexer %s: %w", indexerID, err)
	}
	if !ix.Enabled {
		return nil
	}

	src, err := w.registry.Lookup(ix.Variant)
	if err != nil {
		log.Printf("worker: indexer %s: %v", indexerID, err)
		return nil // permanent error: job is consumed, no retry without operator action
	}

	state := adapter.IndexerState{Cursor: fromIndex, Speed: ix.Speed, Variant: ix.Variant}

	deadline, cancel := context.WithTimeout(ctx, src.Timeout())
	defer cancel()

	result, err := src.Process(deadline, state)
	if err != nil {
		return w.handleFailure(ctx, ix, src, err)
	}

	clampedCursor := cursor.Clamp(result.NewCursor, ix.Variant, result.Proposals)
	// backtrack jobs reuse the same RunOnce path; FromIndex < ix.Cursor signals
	// a backtrack window, so the clamped cursor must never regress the
	// persisted value.
	if fromIndex < ix.Cursor {
		clampedCursor = cursor.ClampForBacktrack(ix.Cursor, result.NewCursor, ix.Variant, result.Proposals)
	}

	newSpeed := cursor.AdjustSpeed(ix.Speed, src.MinSpeed(), src.MaxSpeed(), true)

	if err := w.repo.SaveIndexerResult(ctx, ix.ID, ix.DaoID, result.Proposals, result.Votes, clampedCursor, newSpeed); err != nil {
		return fmt.Errorf("save indexer result: %w", err)
	}
	return nil
}

func (w *Worker) handleFailure(ctx context.Context, ix models.Indexer, src adapter.SourceAdapter, procErr error) error {
	newSpeed := cursor.AdjustSpeed(ix.Speed, src.MinSpeed(), src.MaxSpeed(), false)
	// A speed-only update: no cursor change, no row writes. Reuse
	// SaveIndexerResult with the existing cursor and empty row sets so the
	// same single-transaction path applies.
	if saveErr := w.repo.SaveIndexerResult(ctx, ix.ID, ix.DaoID, nil, nil, ix.Cursor, newSpeed); saveErr != nil {
		return fmt.Errorf("persist speed decrease after adapter error (%v): %w", procErr, saveErr)
	}

	hash := errorHash(procErr)
	if logErr := w.repo.LogIndexingError(ctx, ix.ID.String(), hash, procErr.Error(), nil); logErr != nil {
		log.Printf("worker: indexer %s: failed to log indexing error: %v", ix.ID, logErr)
	}
	return nil
}

func errorHash(err error) string {
	sum := sha256.Sum256([]byte(err.Error()))
	return hex.EncodeToString(sum[:])
}
