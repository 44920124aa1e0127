// Package evm implements the on-chain log-range SourceAdapter family: one
// governor contract on one chain, decoded via a per-variant ABI event set.
package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"governance-indexer/internal/adapter"
	"governance-indexer/internal/models"
	"governance-indexer/internal/rpcpool"
)

// ChoiceScheme selects how a decoded vote-support integer is remapped to the
// canonical {For=0, Against=1, Abstain=2} encoding.
type ChoiceScheme string

const (
	SchemeBinary   ChoiceScheme = "binary"
	SchemeCompound ChoiceScheme = "compound"
	SchemeMaker    ChoiceScheme = "maker"
)

// GovernorABI is the minimal event set every governor variant in this
// family decodes. Field names follow Compound Governor Bravo's event
// signatures; every adapter instance matches exactly these two events, and
// logs with any other signature are ignored.
const GovernorABI = `[
  {"anonymous":false,"name":"ProposalCreated","type":"event","inputs":[
    {"indexed":false,"name":"id","type":"uint256"},
    {"indexed":false,"name":"proposer","type":"address"},
    {"indexed":false,"name":"targets","type":"address[]"},
    {"indexed":false,"name":"values","type":"uint256[]"},
    {"indexed":false,"name":"signatures","type":"string[]"},
    {"indexed":false,"name":"calldatas","type":"bytes[]"},
    {"indexed":false,"name":"startBlock","type":"uint256"},
    {"indexed":false,"name":"endBlock","type":"uint256"},
    {"indexed":false,"name":"description","type":"string"}]},
  {"anonymous":false,"name":"VoteCast","type":"event","inputs":[
    {"indexed":true,"name":"voter","type":"address"},
    {"indexed":false,"name":"proposalId","type":"uint256"},
    {"indexed":false,"name":"support","type":"uint8"},
    {"indexed":false,"name":"votes","type":"uint256"},
    {"indexed":false,"name":"reason","type":"string"}]}
]`

// Config is the per-(protocol,chain) binding for one EVM adapter instance.
type Config struct {
	Variant        adapter.IndexerVariant
	Chain          string // key into rpcpool.Registry
	ContractAddr   string
	Decimals       int // voting-power decimals, 0 -> adapter default 18
	ChoiceScheme   ChoiceScheme
	Kind           models.IndexerKind
	MinSpeedBlocks int64
	MaxSpeedBlocks int64
	CallTimeout    time.Duration
}

// Adapter is a SourceAdapter for a single on-chain governor contract.
type Adapter struct {
	cfg     Config
	pool    *rpcpool.Registry
	parsed  abi.ABI
	address common.Address
}

// New parses cfg.ContractAddr/GovernorABI once at construction so Process
// never re-parses on the hot path.
func New(cfg Config, pool *rpcpool.Registry) (*Adapter, error) {
	parsed, err := abi.JSON(strings.NewReader(GovernorABI))
	if err != nil {
		return nil, fmt.Errorf("evm: parse abi: %w", err)
	}
	if !common.IsHexAddress(cfg.ContractAddr) {
		return nil, fmt.Errorf("evm: invalid contract address %q", cfg.ContractAddr)
	}
	if cfg.MinSpeedBlocks <= 0 {
		cfg.MinSpeedBlocks = 500
	}
	if cfg.MaxSpeedBlocks <= 0 {
		cfg.MaxSpeedBlocks = 50_000
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Minute
	}
	return &Adapter{
		cfg:     cfg,
		pool:    pool,
		parsed:  parsed,
		address: common.HexToAddress(cfg.ContractAddr),
	}, nil
}

func (a *Adapter) Kind() models.IndexerKind        { return a.cfg.Kind }
func (a *Adapter) Variant() adapter.IndexerVariant  { return a.cfg.Variant }
func (a *Adapter) MinSpeed() int64                  { return a.cfg.MinSpeedBlocks }
func (a *Adapter) MaxSpeed() int64                  { return a.cfg.MaxSpeedBlocks }
func (a *Adapter) Timeout() time.Duration           { return a.cfg.CallTimeout }

// Process scans [state.Cursor, min(state.Cursor+state.Speed, head)) for
// ProposalCreated/VoteCast logs and decodes them into the canonical model.
func (a *Adapter) Process(ctx context.Context, state adapter.IndexerState) (adapter.ProcessResult, error) {
	handle, err := a.pool.Acquire(a.cfg.Chain)
	if err != nil {
		return adapter.ProcessResult{}, &adapter.PermanentError{Err: err}
	}
	defer a.pool.Release(a.cfg.Chain)

	var head uint64
	if err := handle.WithRetry(ctx, func() error {
		h, err := handle.Client.BlockNumber(ctx)
		head = h
		return err
	}); err != nil {
		return adapter.ProcessResult{}, &adapter.TransientError{Err: fmt.Errorf("head: %w", err)}
	}

	from, to := adapter.Window(state, int64(head))
	if to <= from {
		return adapter.ProcessResult{NewCursor: to}, nil
	}

	var logs []types.Log
	if err := handle.WithRetry(ctx, func() error {
		q := ethereum.FilterQuery{
			FromBlock: big.NewInt(from),
			ToBlock:   big.NewInt(to - 1),
			Addresses: []common.Address{a.address},
		}
		l, err := handle.Client.FilterLogs(ctx, q)
		logs = l
		return err
	}); err != nil {
		return adapter.ProcessResult{}, &adapter.TransientError{Err: fmt.Errorf("filter logs: %w", err)}
	}

	result := adapter.ProcessResult{NewCursor: to}
	blockTimes := make(map[uint64]time.Time)

	for _, lg := range logs {
		ts, ok := blockTimes[lg.BlockNumber]
		if !ok {
			var header *types.Header
			if err := handle.WithRetry(ctx, func() error {
				h, err := handle.Client.HeaderByNumber(ctx, new(big.Int).SetUint64(lg.BlockNumber))
				header = h
				return err
			}); err != nil {
				return adapter.ProcessResult{}, &adapter.TransientError{Err: fmt.Errorf("header %d: %w", lg.BlockNumber, err)}
			}
			ts = time.Unix(int64(header.Time), 0).UTC()
			blockTimes[lg.BlockNumber] = ts
		}

		eventID := lg.Topics[0]
		switch {
		case eventID == a.parsed.Events["ProposalCreated"].ID && a.cfg.Kind != models.KindVotes:
			p, err := a.decodeProposal(lg, ts)
			if err != nil {
				return adapter.ProcessResult{}, &adapter.TransientError{Err: fmt.Errorf("decode ProposalCreated: %w", err)}
			}
			result.Proposals = append(result.Proposals, p)
		case eventID == a.parsed.Events["VoteCast"].ID && a.cfg.Kind != models.KindProposals:
			v, err := a.decodeVote(lg, ts)
			if err != nil {
				return adapter.ProcessResult{}, &adapter.TransientError{Err: fmt.Errorf("decode VoteCast: %w", err)}
			}
			result.Votes = append(result.Votes, v)
		}
	}

	return result, nil
}

func (a *Adapter) decodeProposal(lg types.Log, blockTime time.Time) (models.Proposal, error) {
	var ev struct {
		ID          *big.Int
		Proposer    common.Address
		Targets     []common.Address
		Values      []*big.Int
		Signatures  []string
		Calldatas   [][]byte
		StartBlock  *big.Int
		EndBlock    *big.Int
		Description string
	}
	if err := a.parsed.UnpackIntoInterface(&ev, "ProposalCreated", lg.Data); err != nil {
		return models.Proposal{}, err
	}

	start := int64(lg.BlockNumber)
	end := ev.EndBlock.Int64()
	startBlock := ev.StartBlock.Int64()

	return models.Proposal{
		ExternalID:    ev.ID.String(),
		Name:          firstLine(ev.Description),
		Body:          ev.Description,
		Author:        adapter.ChecksumAddress(ev.Proposer.Hex()),
		State:         models.StatePending,
		CreatedAt:     blockTime,
		StartAt:       blockTime, // creation block's time; StartBlock's own timestamp is not looked up
		EndAt:         blockTime,
		BlockCreated:  &start,
		BlockStart:    &startBlock,
		BlockEnd:      &end,
		TxID:          lg.TxHash.Hex(),
		IndexCreated:  int64(lg.BlockNumber),
	}, nil
}

func (a *Adapter) decodeVote(lg types.Log, blockTime time.Time) (models.Vote, error) {
	var ev struct {
		ProposalId *big.Int
		Support    uint8
		Votes      *big.Int
		Reason     string
	}
	if err := a.parsed.UnpackIntoInterface(&ev, "VoteCast", lg.Data); err != nil {
		return models.Vote{}, err
	}
	voter := common.BytesToAddress(lg.Topics[1].Bytes())

	var choice = adapterChoice(a.cfg.ChoiceScheme, int(ev.Support))
	block := int64(lg.BlockNumber)

	return models.Vote{
		ProposalExternalID: ev.ProposalId.String(),
		VoterAddress:       adapter.ChecksumAddress(voter.Hex()),
		Choice:             choice,
		VotingPower:        adapter.ScaleVotingPower(ev.Votes, a.cfg.Decimals),
		Reason:             ev.Reason,
		CreatedAt:          blockTime,
		BlockCreated:       &block,
		TxID:               lg.TxHash.Hex(),
	}, nil
}

func adapterChoice(scheme ChoiceScheme, support int) json.RawMessage {
	switch scheme {
	case SchemeCompound:
		return adapter.CompoundChoice(support)
	case SchemeMaker:
		return adapter.MakerBitPackedChoice(big.NewInt(int64(support)))
	default:
		return adapter.BinaryChoice(support)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
