package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"governance-indexer/internal/models"
)

// ListProposalsForDao returns every proposal under the DAO's governors,
// ordered by created_at ascending, the grouper's primary input.
func (r *Repository) ListProposalsForDao(ctx context.Context, daoID uuid.UUID) ([]models.Proposal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, indexer_id, dao_id, external_id, name, body, url, discussion_url,
		       choices, quorum, state, created_at, start_at, end_at,
		       block_created, block_start, block_end, txid, author, metadata
		FROM app.proposals
		WHERE dao_id = $1
		ORDER BY created_at ASC`, daoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Proposal
	for rows.Next() {
		var p models.Proposal
		if err := rows.Scan(&p.ID, &p.IndexerID, &p.DaoID, &p.ExternalID, &p.Name, &p.Body, &p.URL, &p.DiscussionURL,
			&p.Choices, &p.Quorum, &p.State, &p.CreatedAt, &p.StartAt, &p.EndAt,
			&p.BlockCreated, &p.BlockStart, &p.BlockEnd, &p.TxID, &p.Author, &p.Metadata); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListOpenTopicsForDao returns non-archived, visible forum topics for the
// DAO's discourse source, optionally restricted to categoryWhitelist (no
// filtering when empty).
func (r *Repository) ListOpenTopicsForDao(ctx context.Context, daoDiscourseID uuid.UUID, categoryWhitelist []int64) ([]models.DiscourseTopic, error) {
	query := `
		SELECT id, dao_discourse_id, title, category_id, closed, archived, visible, created_at, slug
		FROM app.discourse_topics
		WHERE dao_discourse_id = $1 AND archived = false AND visible = true`
	args := []any{daoDiscourseID}
	if len(categoryWhitelist) > 0 {
		query += " AND category_id = ANY($2)"
		args = append(args, categoryWhitelist)
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DiscourseTopic
	for rows.Next() {
		var t models.DiscourseTopic
		if err := rows.Scan(&t.ID, &t.DaoDiscourseID, &t.Title, &t.CategoryID, &t.Closed, &t.Archived, &t.Visible, &t.CreatedAt, &t.Slug); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertDiscourseTopic stores a topic fetched from discourse.Client.FetchTopics.
// Topics are otherwise read-only to the grouper; this is the one write path,
// called by the same loop that polls the forum before each reconciliation pass.
func (r *Repository) UpsertDiscourseTopic(ctx context.Context, daoDiscourseID uuid.UUID, t models.DiscourseTopic) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO app.discourse_topics (id, dao_discourse_id, title, category_id, closed, archived, visible, created_at, slug)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title      = EXCLUDED.title,
			category_id = EXCLUDED.category_id,
			closed     = EXCLUDED.closed,
			archived   = EXCLUDED.archived,
			visible    = EXCLUDED.visible,
			slug       = EXCLUDED.slug`,
		t.ID, daoDiscourseID, t.Title, t.CategoryID, t.Closed, t.Archived, t.Visible, t.CreatedAt, t.Slug,
	)
	return err
}

// ListProposalGroupsForDao returns the DAO's existing groups, the grouper's
// seed state.
func (r *Repository) ListProposalGroupsForDao(ctx context.Context, daoID uuid.UUID) ([]models.ProposalGroup, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, dao_id, name, items, created_at
		FROM app.proposal_groups
		WHERE dao_id = $1`, daoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProposalGroup
	for rows.Next() {
		var g models.ProposalGroup
		var rawItems []byte
		if err := rows.Scan(&g.ID, &g.DaoID, &g.Name, &rawItems, &g.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawItems, &g.Items); err != nil {
			return nil, fmt.Errorf("decode group %s items: %w", g.ID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpsertProposalGroup persists g, skipping the write entirely if an
// existing row with the same id has byte-identical serialized items and
// name, per spec.md §4.7's skip-if-unchanged persistence rule.
func (r *Repository) UpsertProposalGroup(ctx context.Context, g models.ProposalGroup) error {
	newItems, err := json.Marshal(g.Items)
	if err != nil {
		return fmt.Errorf("marshal group items: %w", err)
	}

	var existingItems []byte
	var existingName string
	err = r.db.QueryRow(ctx, `SELECT items, name FROM app.proposal_groups WHERE id = $1`, g.ID).
		Scan(&existingItems, &existingName)
	if err == nil && existingName == g.Name && bytes.Equal(existingItems, newItems) {
		return nil // unchanged: skip, per the non-regression/stability invariant
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO app.proposal_groups (id, dao_id, name, items, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			items = EXCLUDED.items`,
		g.ID, g.DaoID, g.Name, newItems,
	)
	return err
}
