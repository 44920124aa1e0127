// Package grouper reconciles a DAO's proposals and forum topics into
// ProposalGroup rows, one logical initiative per group, per spec.md §4.7.
package grouper

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"governance-indexer/internal/models"
	"governance-indexer/internal/repository"
)

// Config tunes the matching thresholds. JaccardThreshold and
// EmbeddingThreshold default to spec.md's stated values; Embedder is nil
// unless an operator configures one, which leaves the embedding signal off.
type Config struct {
	JaccardThreshold  float64
	EmbeddingThreshold float64
	Embedder          Embedder
	CategoryWhitelist []int64
	// Cache is the optional keyword cache described in spec.md §6. Nil
	// (the default when no REDIS_URL is configured) disables it without
	// changing any match result.
	Cache KeywordCache
}

func (c Config) withDefaults() Config {
	if c.JaccardThreshold <= 0 {
		c.JaccardThreshold = 0.5
	}
	if c.EmbeddingThreshold <= 0 {
		c.EmbeddingThreshold = 0.85
	}
	return c
}

// Grouper runs one reconciliation pass per DAO on request (the caller, e.g.
// a ticker in cmd/indexer, decides the schedule).
type Grouper struct {
	repo *repository.Repository
	cfg  Config
}

func New(repo *repository.Repository, cfg Config) *Grouper {
	return &Grouper{repo: repo, cfg: cfg.withDefaults()}
}

type candidate struct {
	proposalIdx int
	topicIdx    int
	strength    float64
}

// Run reconciles daoID's proposals/topics/groups and persists the result.
// It never deletes a group or removes an already-assigned item (the
// non-regression invariant): existing groups are seeded first, and only
// proposals/topics not already in any group are considered, each landing in
// a new group. Existing groups are never extended with new items.
func (g *Grouper) Run(ctx context.Context, daoID, daoDiscourseID uuid.UUID) error {
	proposals, err := g.repo.ListProposalsForDao(ctx, daoID)
	if err != nil {
		return err
	}
	topics, err := g.repo.ListOpenTopicsForDao(ctx, daoDiscourseID, g.cfg.CategoryWhitelist)
	if err != nil {
		return err
	}
	groups, err := g.repo.ListProposalGroupsForDao(ctx, daoID)
	if err != nil {
		return err
	}

	assignedProposal := make(map[string]bool) // external_id -> already grouped
	assignedTopic := make(map[uuid.UUID]bool)

	for _, grp := range groups {
		for _, item := range grp.Items {
			switch item.Kind {
			case models.GroupItemProposal:
				assignedProposal[item.ExternalID] = true
			case models.GroupItemTopic:
				assignedTopic[item.ID] = true
			}
		}
	}

	var unassignedProposals []models.Proposal
	for _, p := range proposals {
		if !assignedProposal[p.ExternalID] {
			unassignedProposals = append(unassignedProposals, p)
		}
	}
	var unassignedTopics []models.DiscourseTopic
	for _, t := range topics {
		if !assignedTopic[t.ID] {
			unassignedTopics = append(unassignedTopics, t)
		}
	}

	candidates := g.buildCandidates(ctx, unassignedProposals, unassignedTopics)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].strength > candidates[j].strength })

	proposalTaken := make(map[int]bool)
	topicTaken := make(map[int]bool)
	var newGroups []models.ProposalGroup

	for _, c := range candidates {
		if proposalTaken[c.proposalIdx] || topicTaken[c.topicIdx] {
			continue
		}
		proposalTaken[c.proposalIdx] = true
		topicTaken[c.topicIdx] = true

		p := unassignedProposals[c.proposalIdx]
		t := unassignedTopics[c.topicIdx]
		newGroups = append(newGroups, models.ProposalGroup{
			ID:    uuid.New(),
			DaoID: daoID,
			Name:  p.Name,
			Items: []models.GroupItem{
				{Kind: models.GroupItemProposal, ID: p.ID, ExternalID: p.ExternalID, GovernorID: p.IndexerID, Name: p.Name},
				{Kind: models.GroupItemTopic, ID: t.ID, ExternalID: t.Slug, DiscourseID: t.DaoDiscourseID, Name: t.Title},
			},
		})
	}

	for i, p := range unassignedProposals {
		if proposalTaken[i] {
			continue
		}
		newGroups = append(newGroups, models.ProposalGroup{
			ID:    uuid.New(),
			DaoID: daoID,
			Name:  p.Name,
			Items: []models.GroupItem{{Kind: models.GroupItemProposal, ID: p.ID, ExternalID: p.ExternalID, GovernorID: p.IndexerID, Name: p.Name}},
		})
	}
	for i, t := range unassignedTopics {
		if topicTaken[i] {
			continue
		}
		newGroups = append(newGroups, models.ProposalGroup{
			ID:    uuid.New(),
			DaoID: daoID,
			Name:  t.Title,
			Items: []models.GroupItem{{Kind: models.GroupItemTopic, ID: t.ID, ExternalID: t.Slug, DiscourseID: t.DaoDiscourseID, Name: t.Title}},
		})
	}

	for _, grp := range newGroups {
		if err := g.repo.UpsertProposalGroup(ctx, grp); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grouper) buildCandidates(ctx context.Context, proposals []models.Proposal, topics []models.DiscourseTopic) []candidate {
	var candidates []candidate
	for pi, p := range proposals {
		for ti, t := range topics {
			strength := g.matchStrength(ctx, p, t)
			if strength > 0 {
				candidates = append(candidates, candidate{proposalIdx: pi, topicIdx: ti, strength: strength})
			}
		}
	}
	return candidates
}

func (g *Grouper) matchStrength(ctx context.Context, p models.Proposal, t models.DiscourseTopic) float64 {
	if discussionURLMatch(p.DiscussionURL, t.Slug, t.Slug) {
		return 1.0
	}

	pSet := cachedTokenize(ctx, g.cfg.Cache, "proposal:"+p.ExternalID, p.Name)
	tSet := cachedTokenize(ctx, g.cfg.Cache, "topic:"+t.ID.String(), t.Title)
	strength := jaccardSets(pSet, tSet)
	if strength < g.cfg.JaccardThreshold {
		strength = 0
	}

	if g.cfg.Embedder != nil {
		var embStrength float64
		quiet(func() {
			va, errA := g.cfg.Embedder.Embed(p.Name)
			vb, errB := g.cfg.Embedder.Embed(t.Title)
			if errA == nil && errB == nil {
				embStrength = cosineSimilarity(va, vb)
			}
		})
		if embStrength >= g.cfg.EmbeddingThreshold && embStrength > strength {
			strength = embStrength
		}
	}

	return strength
}
