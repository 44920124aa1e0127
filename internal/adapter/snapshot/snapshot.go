// Package snapshot implements the off-chain Snapshot-style SourceAdapter:
// a GraphQL endpoint paginated by creation-time cursor rather than block
// range. No GraphQL client library appears anywhere in this module's
// reference corpus (the one GraphQL-named dependency available is a
// server-side schema library, not a client), so this adapter issues plain
// HTTP POST requests with a JSON body and decodes the JSON response body,
// the same fetch/decode shape the corpus's REST governance scanners use.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"governance-indexer/internal/adapter"
	"governance-indexer/internal/models"
)

const defaultPageSize = 1000

const proposalsQuery = `query Proposals($space: String!, $created_gte: Int!, $first: Int!) {
  proposals(
    first: $first,
    where: { space: $space, created_gte: $created_gte },
    orderBy: "created",
    orderDirection: asc
  ) {
    id
    title
    body
    link
    discussion
    choices
    quorum
    state
    author
    created
    start
    end
  }
}`

const votesQuery = `query Votes($space: String!, $created_gte: Int!, $first: Int!) {
  votes(
    first: $first,
    where: { space: $space, created_gte: $created_gte },
    orderBy: "created",
    orderDirection: asc
  ) {
    voter
    proposal { id }
    choice
    vp
    reason
    created
  }
}`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type rawProposal struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Link       string          `json:"link"`
	Discussion string          `json:"discussion"`
	Choices    json.RawMessage `json:"choices"`
	Quorum     float64         `json:"quorum"`
	State      string          `json:"state"`
	Author     string          `json:"author"`
	Created    int64           `json:"created"`
	Start      int64           `json:"start"`
	End        int64           `json:"end"`
}

type rawVote struct {
	Voter    string          `json:"voter"`
	Proposal struct {
		ID string `json:"id"`
	} `json:"proposal"`
	Choice  json.RawMessage `json:"choice"`
	VP      float64         `json:"vp"`
	Reason  string          `json:"reason"`
	Created int64           `json:"created"`
}

// Config binds one adapter instance to a single Snapshot space.
type Config struct {
	Variant     adapter.IndexerVariant
	Endpoint    string // e.g. "https://hub.snapshot.org/graphql"
	Space       string
	Kind        models.IndexerKind
	MinSpeedSec int64
	MaxSpeedSec int64
	CallTimeout time.Duration
}

// Adapter is a SourceAdapter for one Snapshot space.
type Adapter struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Adapter {
	if cfg.MinSpeedSec <= 0 {
		cfg.MinSpeedSec = 3600
	}
	if cfg.MaxSpeedSec <= 0 {
		cfg.MaxSpeedSec = 7 * 24 * 3600
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Minute
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: cfg.CallTimeout}}
}

func (a *Adapter) Kind() models.IndexerKind       { return a.cfg.Kind }
func (a *Adapter) Variant() adapter.IndexerVariant { return a.cfg.Variant }
func (a *Adapter) MinSpeed() int64                 { return a.cfg.MinSpeedSec }
func (a *Adapter) MaxSpeed() int64                 { return a.cfg.MaxSpeedSec }
func (a *Adapter) Timeout() time.Duration          { return a.cfg.CallTimeout }

// Process pages proposals or votes created within [state.Cursor,
// min(state.Cursor+state.Speed, now)), capped at defaultPageSize per page.
func (a *Adapter) Process(ctx context.Context, state adapter.IndexerState) (adapter.ProcessResult, error) {
	head := time.Now().Unix()
	from, to := adapter.Window(state, head)
	if to <= from {
		return adapter.ProcessResult{NewCursor: to}, nil
	}

	result := adapter.ProcessResult{NewCursor: to}

	switch a.cfg.Kind {
	case models.KindProposals:
		proposals, err := a.fetchProposals(ctx, from, to)
		if err != nil {
			return adapter.ProcessResult{}, err
		}
		result.Proposals = proposals
	case models.KindVotes:
		votes, err := a.fetchVotes(ctx, from, to)
		if err != nil {
			return adapter.ProcessResult{}, err
		}
		result.Votes = votes
	default:
		proposals, err := a.fetchProposals(ctx, from, to)
		if err != nil {
			return adapter.ProcessResult{}, err
		}
		votes, err := a.fetchVotes(ctx, from, to)
		if err != nil {
			return adapter.ProcessResult{}, err
		}
		result.Proposals, result.Votes = proposals, votes
	}

	return result, nil
}

func (a *Adapter) fetchProposals(ctx context.Context, from, to int64) ([]models.Proposal, error) {
	var out []rawProposal
	if err := a.query(ctx, proposalsQuery, from, &out); err != nil {
		return nil, err
	}

	proposals := make([]models.Proposal, 0, len(out))
	for _, rp := range out {
		if rp.Created >= to {
			continue
		}
		proposals = append(proposals, models.Proposal{
			ExternalID:    rp.ID,
			Name:          rp.Title,
			Body:          rp.Body,
			URL:           rp.Link,
			DiscussionURL: rp.Discussion,
			Choices:       adapter.SnapshotChoice(rp.Choices),
			Quorum:        rp.Quorum,
			State:         snapshotState(rp.State),
			Author:        rp.Author,
			CreatedAt:     time.Unix(rp.Created, 0).UTC(),
			StartAt:       time.Unix(rp.Start, 0).UTC(),
			EndAt:         time.Unix(rp.End, 0).UTC(),
			IndexCreated:  rp.Created,
		})
	}
	return proposals, nil
}

func (a *Adapter) fetchVotes(ctx context.Context, from, to int64) ([]models.Vote, error) {
	var out []rawVote
	if err := a.query(ctx, votesQuery, from, &out); err != nil {
		return nil, err
	}

	votes := make([]models.Vote, 0, len(out))
	for _, rv := range out {
		if rv.Created >= to {
			continue
		}
		votes = append(votes, models.Vote{
			ProposalExternalID: rv.Proposal.ID,
			VoterAddress:       adapter.ChecksumAddress(rv.Voter),
			Choice:             adapter.SnapshotChoice(rv.Choice),
			VotingPower:        rv.VP,
			Reason:             rv.Reason,
			CreatedAt:          time.Unix(rv.Created, 0).UTC(),
		})
	}
	return votes, nil
}

// query executes query against the space with a created_gte lower bound and
// decodes the single top-level field in the response ("proposals" or
// "votes") into dest.
func (a *Adapter) query(ctx context.Context, query string, createdGTE int64, dest any) error {
	body, err := json.Marshal(gqlRequest{
		Query: query,
		Variables: map[string]any{
			"space":       a.cfg.Space,
			"created_gte": createdGTE,
			"first":       defaultPageSize,
		},
	})
	if err != nil {
		return &adapter.PermanentError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &adapter.PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &adapter.TransientError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &adapter.TransientError{Err: err}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &adapter.TransientError{Err: fmt.Errorf("snapshot: status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &adapter.PermanentError{Err: fmt.Errorf("snapshot: status %d: %s", resp.StatusCode, raw)}
	}

	var gr gqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return &adapter.TransientError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(gr.Errors) > 0 {
		return &adapter.TransientError{Err: fmt.Errorf("snapshot graphql error: %s", gr.Errors[0].Message)}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(gr.Data, &envelope); err != nil {
		return &adapter.TransientError{Err: fmt.Errorf("decode data envelope: %w", err)}
	}
	for _, field := range envelope {
		return json.Unmarshal(field, dest)
	}
	return nil
}

func snapshotState(s string) models.ProposalState {
	switch s {
	case "pending":
		return models.StatePending
	case "active":
		return models.StateActive
	case "closed":
		return models.StateSucceeded
	default:
		return models.StateUnknown
	}
}
