package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"governance-indexer/internal/models"
)

// ClaimedJob is a job_queue row claimed by ClaimNext, which has already
// marked it processed; there is no separate completion step.
type ClaimedJob struct {
	ID   int64
	Kind models.JobKind
	Job  json.RawMessage
}

// Enqueue inserts a new unprocessed job, used by the producer's regular and
// backtrack ticker loops.
func (r *Repository) Enqueue(ctx context.Context, kind models.JobKind, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO app.job_queue (job, kind, processed, created_at)
		VALUES ($1, $2, false, NOW())`,
		raw, kind,
	)
	return err
}

// ClaimNext atomically claims the oldest unprocessed job of the given kinds
// using SELECT ... FOR UPDATE SKIP LOCKED, so concurrent worker goroutines
// (or processes) never block on each other and never double-claim a row.
// Returns (ClaimedJob{}, false, nil) when the queue is empty.
func (r *Repository) ClaimNext(ctx context.Context, kinds ...models.JobKind) (ClaimedJob, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return ClaimedJob{}, false, err
	}
	defer tx.Rollback(ctx)

	var job ClaimedJob
	err = tx.QueryRow(ctx, `
		SELECT id, job, kind
		FROM app.job_queue
		WHERE processed = false AND kind = ANY($1)
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`,
		kindStrings(kinds),
	).Scan(&job.ID, &job.Job, &job.Kind)
	if err == pgx.ErrNoRows {
		return ClaimedJob{}, false, nil
	}
	if err != nil {
		return ClaimedJob{}, false, err
	}

	if _, err := tx.Exec(ctx, `UPDATE app.job_queue SET processed = true WHERE id = $1`, job.ID); err != nil {
		return ClaimedJob{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ClaimedJob{}, false, err
	}
	return job, true, nil
}

func kindStrings(kinds []models.JobKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// LogIndexingError records a worker failure, deduplicated by (indexer_id,
// error_hash) so a persistent failure doesn't spam the table every tick.
func (r *Repository) LogIndexingError(ctx context.Context, indexerID, errHash, errMsg string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO app.indexing_errors (indexer_id, error_hash, error_message, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (indexer_id, error_hash) DO NOTHING`,
		indexerID, errHash, errMsg, payload,
	)
	return err
}
