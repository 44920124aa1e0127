package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"governance-indexer/internal/models"
)

// sanitizeForPG strips null bytes and invalid UTF-8 that Postgres rejects
// outright.
func sanitizeForPG(s string) string {
	if strings.ContainsRune(s, 0) {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

func sanitizeJSONB(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	s := sanitizeForPG(string(raw))
	if !json.Valid([]byte(s)) {
		return nil
	}
	return []byte(s)
}

// SaveIndexerResult persists the proposals/votes an adapter produced and
// advances the indexer's cursor in a single transaction, so a crash between
// "rows written" and "cursor advanced" can never happen. Proposals are
// upserted by (indexer_id, external_id) — external id is only unique within
// an indexer, so two indexers on the same DAO can emit the same external id
// without colliding. Votes are insert-only with an idempotency key of
// (indexer_id, proposal_external_id, voter_address, block_created) so the
// same vote observed twice (e.g. a backtrack replay) is a no-op, not a
// duplicate row, while a re-vote in a later block is still captured.
func (r *Repository) SaveIndexerResult(ctx context.Context, indexerID uuid.UUID, daoID uuid.UUID, proposals []models.Proposal, votes []models.Vote, newCursor int64, newSpeed int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range proposals {
		if err := upsertProposal(ctx, tx, indexerID, daoID, p); err != nil {
			return fmt.Errorf("upsert proposal %s: %w", p.ExternalID, err)
		}
	}
	for _, v := range votes {
		if err := insertVote(ctx, tx, indexerID, daoID, v); err != nil {
			return fmt.Errorf("insert vote %s/%s: %w", v.ProposalExternalID, v.VoterAddress, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE app.indexers
		SET cursor = $1, speed = $2, updated_at = NOW()
		WHERE id = $3`,
		newCursor, newSpeed, indexerID,
	); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	return tx.Commit(ctx)
}

func upsertProposal(ctx context.Context, tx pgx.Tx, indexerID, daoID uuid.UUID, p models.Proposal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO app.proposals (
			id, indexer_id, dao_id, external_id, name, body, url, discussion_url,
			choices, quorum, state, created_at, start_at, end_at,
			block_created, block_start, block_end, txid, author, metadata
		) VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (indexer_id, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			body = EXCLUDED.body,
			url = EXCLUDED.url,
			discussion_url = EXCLUDED.discussion_url,
			choices = EXCLUDED.choices,
			quorum = EXCLUDED.quorum,
			state = EXCLUDED.state,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			block_start = EXCLUDED.block_start,
			block_end = EXCLUDED.block_end,
			metadata = EXCLUDED.metadata`,
		indexerID, daoID, p.ExternalID, sanitizeForPG(p.Name), sanitizeForPG(p.Body), p.URL, p.DiscussionURL,
		sanitizeJSONB(p.Choices), p.Quorum, p.State, p.CreatedAt, p.StartAt, p.EndAt,
		p.BlockCreated, p.BlockStart, p.BlockEnd, p.TxID, p.Author, sanitizeJSONB(p.Metadata),
	)
	return err
}

func insertVote(ctx context.Context, tx pgx.Tx, indexerID, daoID uuid.UUID, v models.Vote) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO app.votes (
			id, indexer_id, dao_id, proposal_external_id, voter_address,
			choice, voting_power, reason, created_at, block_created, txid
		) VALUES (
			gen_random_uuid(), $1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (indexer_id, proposal_external_id, voter_address, block_created) DO NOTHING`,
		indexerID, daoID, v.ProposalExternalID, v.VoterAddress,
		sanitizeJSONB(v.Choice), v.VotingPower, sanitizeForPG(v.Reason), v.CreatedAt, v.BlockCreated, v.TxID,
	)
	return err
}
