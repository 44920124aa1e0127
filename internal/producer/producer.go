// Package producer runs the regular and backtrack ticker loops that
// enumerate enabled indexers and enqueue scan jobs for the workers, per
// spec.md §4.5.
package producer

import (
	"context"
	"log"
	"time"

	"governance-indexer/internal/models"
	"governance-indexer/internal/repository"
)

const (
	regularInterval   = 5 * time.Minute
	backtrackInterval = 60 * time.Minute
	backtrackFraction = 0.9
)

// disabledVariants lists indexers the producer never schedules, historically
// paused for upstream RPC quota or data-quality reasons.
var disabledVariants = map[string]bool{
	"MakerPollArbitrum": true,
	"AaveV3PolygonPos":  true,
	"AaveV3Avalanche":   true,
}

// Producer owns both ticker goroutines. Construct one per process.
type Producer struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Producer {
	return &Producer{repo: repo}
}

// Start launches the regular and backtrack loops as background goroutines.
// Both exit when ctx is canceled.
func (p *Producer) Start(ctx context.Context) {
	go p.runLoop(ctx, regularInterval, p.enqueueRegular)
	go p.runLoop(ctx, backtrackInterval, p.enqueueBacktrack)
}

func (p *Producer) runLoop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick(ctx) // run once immediately instead of waiting a full interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (p *Producer) enqueueRegular(ctx context.Context) {
	indexers, err := p.repo.ListEnabledIndexers(ctx)
	if err != nil {
		log.Printf("producer: regular tick: list indexers: %v", err)
		return
	}
	for _, ix := range indexers {
		if disabledVariants[ix.Variant] {
			continue
		}
		if err := enqueueFor(ctx, p.repo, ix, ix.Cursor); err != nil {
			log.Printf("producer: regular tick: enqueue %s: %v", ix.ID, err)
		}
	}
}

func (p *Producer) enqueueBacktrack(ctx context.Context) {
	indexers, err := p.repo.ListEnabledIndexers(ctx)
	if err != nil {
		log.Printf("producer: backtrack tick: list indexers: %v", err)
		return
	}
	for _, ix := range indexers {
		if disabledVariants[ix.Variant] {
			continue
		}
		from := int64(float64(ix.Cursor) * backtrackFraction)
		if from < 0 {
			from = 0
		}
		if err := enqueueFor(ctx, p.repo, ix, from); err != nil {
			log.Printf("producer: backtrack tick: enqueue %s: %v", ix.ID, err)
		}
	}
}

func enqueueFor(ctx context.Context, repo *repository.Repository, ix models.Indexer, from int64) error {
	switch ix.Kind {
	case models.KindProposals:
		return repo.Enqueue(ctx, models.JobProposals, models.ProposalsJobPayload{IndexerID: ix.ID, FromIndex: from})
	case models.KindVotes:
		return repo.Enqueue(ctx, models.JobVotes, models.VotesJobPayload{IndexerID: ix.ID, FromIndex: from})
	default: // Both
		if err := repo.Enqueue(ctx, models.JobProposals, models.ProposalsJobPayload{IndexerID: ix.ID, FromIndex: from}); err != nil {
			return err
		}
		return repo.Enqueue(ctx, models.JobVotes, models.VotesJobPayload{IndexerID: ix.ID, FromIndex: from})
	}
}
