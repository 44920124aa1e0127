// Package models holds the canonical relational entities shared by the
// adapters, persistence layer, worker, producer, and grouper.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IndexerKind is what a source adapter/indexer produces.
type IndexerKind string

const (
	KindProposals IndexerKind = "PROPOSALS"
	KindVotes     IndexerKind = "VOTES"
	KindBoth      IndexerKind = "BOTH"
)

// ProposalState is the canonical proposal lifecycle state.
type ProposalState string

const (
	StatePending   ProposalState = "PENDING"
	StateActive    ProposalState = "ACTIVE"
	StateDefeated  ProposalState = "DEFEATED"
	StateSucceeded ProposalState = "SUCCEEDED"
	StateQueued    ProposalState = "QUEUED"
	StateExecuted  ProposalState = "EXECUTED"
	StateExpired   ProposalState = "EXPIRED"
	StateCanceled  ProposalState = "CANCELED"
	StateHidden    ProposalState = "HIDDEN"
	StateUnknown   ProposalState = "UNKNOWN"
)

// Canonical vote choice codes. Every adapter normalizes to this encoding at
// ingest time; see the choice functions in internal/adapter/normalize.go for
// the per-family remap.
const (
	ChoiceFor     = 0
	ChoiceAgainst = 1
	ChoiceAbstain = 2
)

// Dao is a governance organization.
type Dao struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

// Indexer is a worker identity bound to a single (DAO, source protocol, kind)
// and its cursor/speed state.
type Indexer struct {
	ID        uuid.UUID   `json:"id"`
	DaoID     uuid.UUID   `json:"dao_id"`
	Variant   string      `json:"variant"` // closed enum tag, e.g. "AaveV3MainnetProposals"
	Kind      IndexerKind `json:"kind"`
	Enabled   bool        `json:"enabled"`
	Cursor    int64       `json:"cursor"`
	Speed     int64       `json:"speed"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Proposal is a normalized on-chain or off-chain governance proposal.
type Proposal struct {
	ID             uuid.UUID       `json:"id"`
	IndexerID      uuid.UUID       `json:"indexer_id"`
	DaoID          uuid.UUID       `json:"dao_id"`
	ExternalID     string          `json:"external_id"`
	Name           string          `json:"name"`
	Body           string          `json:"body"`
	URL            string          `json:"url"`
	DiscussionURL  string          `json:"discussion_url,omitempty"`
	Choices        json.RawMessage `json:"choices"` // JSON array
	Quorum         float64         `json:"quorum"`
	State          ProposalState   `json:"state"`
	CreatedAt      time.Time       `json:"created_at"`
	StartAt        time.Time       `json:"start_at"`
	EndAt          time.Time       `json:"end_at"`
	BlockCreated   *int64          `json:"block_created,omitempty"`
	BlockStart     *int64          `json:"block_start,omitempty"`
	BlockEnd       *int64          `json:"block_end,omitempty"`
	TxID           string          `json:"txid,omitempty"`
	Author         string          `json:"author,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`

	// IndexCreated is the cursor-comparable position this proposal was
	// observed at (block number for EVM, unix second for time-based
	// sources). Used only for the cursor-clamp rule; not persisted as its
	// own column (it's BlockCreated for EVM, CreatedAt.Unix() for Snapshot).
	IndexCreated int64 `json:"-"`
}

// Vote is a normalized ballot cast on a proposal.
type Vote struct {
	ID                 uuid.UUID       `json:"id"`
	IndexerID          uuid.UUID       `json:"indexer_id"`
	DaoID              uuid.UUID       `json:"dao_id"`
	ProposalID         *uuid.UUID      `json:"proposal_id,omitempty"` // linked later by the grouper's linking pass
	ProposalExternalID string          `json:"proposal_external_id"`
	VoterAddress       string          `json:"voter_address"` // EIP-55 checksummed
	Choice             json.RawMessage `json:"choice"`        // int, int-array, or fractional-map JSON
	VotingPower        float64         `json:"voting_power"`
	Reason             string          `json:"reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	BlockCreated       *int64          `json:"block_created,omitempty"`
	TxID               string          `json:"txid,omitempty"`
}

// GroupItemKind discriminates the two kinds of item a ProposalGroup clusters.
type GroupItemKind string

const (
	GroupItemProposal GroupItemKind = "proposal"
	GroupItemTopic    GroupItemKind = "topic"
)

// GroupItem is one tagged member of a ProposalGroup's ordered item list.
type GroupItem struct {
	Kind         GroupItemKind `json:"kind"`
	ID           uuid.UUID     `json:"id"`
	ExternalID   string        `json:"external_id"`
	GovernorID   uuid.UUID     `json:"governor_id,omitempty"`
	DiscourseID  uuid.UUID     `json:"dao_discourse_id,omitempty"`
	Name         string        `json:"name"`
}

// ProposalGroup clusters related proposals/topics representing one logical
// initiative.
type ProposalGroup struct {
	ID        uuid.UUID   `json:"id"`
	DaoID     uuid.UUID   `json:"dao_id"`
	Name      string      `json:"name"`
	Items     []GroupItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// JobKind discriminates the payload shape stored in JobQueue.Job.
type JobKind string

const (
	JobProposals JobKind = "proposals"
	JobVotes     JobKind = "votes"
)

// JobQueue is a persisted, claimable unit of scan work.
type JobQueue struct {
	ID        int64           `json:"id"`
	Job       json.RawMessage `json:"job"`
	Kind      JobKind         `json:"kind"`
	Processed bool            `json:"processed"`
	CreatedAt time.Time       `json:"created_at"`
}

// ProposalsJobPayload is the canonical payload for a JobProposals job.
type ProposalsJobPayload struct {
	IndexerID uuid.UUID `json:"indexer_id"`
	FromIndex int64     `json:"from_index"`
}

// VotesJobPayload is the canonical payload for a JobVotes job.
type VotesJobPayload struct {
	IndexerID  uuid.UUID  `json:"indexer_id"`
	ProposalID *uuid.UUID `json:"proposal_id,omitempty"`
	FromIndex  int64      `json:"from_index"`
}

// DiscourseTopic is an external collaborator's forum topic row, read (not
// written) by the grouper.
type DiscourseTopic struct {
	ID             uuid.UUID `json:"id"`
	DaoDiscourseID uuid.UUID `json:"dao_discourse_id"`
	Title          string    `json:"title"`
	CategoryID     int64     `json:"category_id"`
	Closed         bool      `json:"closed"`
	Archived       bool      `json:"archived"`
	Visible        bool      `json:"visible"`
	CreatedAt      time.Time `json:"created_at"`
	Slug           string    `json:"slug"`
}
