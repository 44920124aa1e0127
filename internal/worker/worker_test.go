package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"governance-indexer/internal/adapter"
	"governance-indexer/internal/models"
	"governance-indexer/internal/repository"

	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for *repository.Repository, recording
// exactly what RunOnce saved so assertions don't need a database.
type fakeStore struct {
	indexer models.Indexer

	savedCursor int64
	savedSpeed  int64
	saveCalls   int

	loggedErr string
}

func (f *fakeStore) GetIndexer(ctx context.Context, id uuid.UUID) (models.Indexer, error) {
	return f.indexer, nil
}

func (f *fakeStore) SaveIndexerResult(ctx context.Context, indexerID, daoID uuid.UUID, proposals []models.Proposal, votes []models.Vote, newCursor, newSpeed int64) error {
	f.saveCalls++
	f.savedCursor = newCursor
	f.savedSpeed = newSpeed
	return nil
}

func (f *fakeStore) LogIndexingError(ctx context.Context, indexerID, errHash, errMsg string, payload []byte) error {
	f.loggedErr = errMsg
	return nil
}

// fakeAdapter is a SourceAdapter whose Process behavior and declared speed
// bounds are set per test.
type fakeAdapter struct {
	variant  adapter.IndexerVariant
	minSpeed int64
	maxSpeed int64
	result   adapter.ProcessResult
	err      error
}

func (a *fakeAdapter) Kind() models.IndexerKind       { return models.KindProposals }
func (a *fakeAdapter) Variant() adapter.IndexerVariant { return a.variant }
func (a *fakeAdapter) MinSpeed() int64                 { return a.minSpeed }
func (a *fakeAdapter) MaxSpeed() int64                 { return a.maxSpeed }
func (a *fakeAdapter) Timeout() time.Duration          { return time.Second }
func (a *fakeAdapter) Process(ctx context.Context, state adapter.IndexerState) (adapter.ProcessResult, error) {
	return a.result, a.err
}

func TestErrorHashIsStableAndDistinct(t *testing.T) {
	h1 := errorHash(errors.New("rate limited"))
	h2 := errorHash(errors.New("rate limited"))
	h3 := errorHash(errors.New("decode failure"))
	if h1 != h2 {
		t.Fatal("expected identical errors to hash identically")
	}
	if h1 == h3 {
		t.Fatal("expected distinct errors to hash differently")
	}
}

func TestRunOnceRejectsUnknownJobKind(t *testing.T) {
	w := New(nil, nil)
	job := repository.ClaimedJob{Kind: models.JobKind("bogus"), Job: json.RawMessage(`{}`)}
	if err := w.RunOnce(context.Background(), job); err == nil {
		t.Fatal("expected error for unknown job kind")
	}
}

func TestRunOnceRejectsMalformedPayload(t *testing.T) {
	w := New(nil, nil)
	job := repository.ClaimedJob{Kind: models.JobProposals, Job: json.RawMessage(`not json`)}
	if err := w.RunOnce(context.Background(), job); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

// A repeated-failure speed decrease must clamp to the adapter's own declared
// floor (src.MinSpeed()), not some hardcoded value — this is the scenario
// that a hardcoded minSpeed=1 would silently violate.
func TestRunOnceFailureClampsToAdapterMinSpeed(t *testing.T) {
	ix := models.Indexer{
		ID: uuid.New(), DaoID: uuid.New(), Variant: "FakeProposals",
		Kind: models.KindProposals, Enabled: true, Cursor: 100, Speed: 60,
	}
	fs := &fakeStore{indexer: ix}
	fa := &fakeAdapter{
		variant:  adapter.IndexerVariant("FakeProposals"),
		minSpeed: 50, maxSpeed: 5000,
		err: &adapter.TransientError{Err: errors.New("rpc timeout")},
	}
	w := &Worker{repo: fs, registry: adapter.NewRegistry(fa)}

	raw, _ := json.Marshal(models.ProposalsJobPayload{IndexerID: ix.ID, FromIndex: ix.Cursor})
	job := repository.ClaimedJob{Kind: models.JobProposals, Job: raw}

	if err := w.RunOnce(context.Background(), job); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if fs.saveCalls != 1 {
		t.Fatalf("expected exactly one save, got %d", fs.saveCalls)
	}
	if fs.savedCursor != ix.Cursor {
		t.Fatalf("expected cursor to stay at %d on failure, got %d", ix.Cursor, fs.savedCursor)
	}
	if fs.savedSpeed != fa.minSpeed {
		t.Fatalf("expected speed clamped to adapter min %d, got %d", fa.minSpeed, fs.savedSpeed)
	}
	if fs.loggedErr == "" {
		t.Fatal("expected the failure to be logged")
	}
}

// An Active proposal discovered in the scan window must clamp the cursor
// back to that proposal's IndexCreated rather than the adapter's raw
// NewCursor, so the paired votes indexer never skips the window in which
// the proposal's state transitions occur.
func TestRunOnceClampsCursorForActiveProposal(t *testing.T) {
	ix := models.Indexer{
		ID: uuid.New(), DaoID: uuid.New(), Variant: "FakeProposals",
		Kind: models.KindProposals, Enabled: true, Cursor: 100, Speed: 500,
	}
	fs := &fakeStore{indexer: ix}
	fa := &fakeAdapter{
		variant:  adapter.IndexerVariant("FakeProposals"),
		minSpeed: 100, maxSpeed: 5000,
		result: adapter.ProcessResult{
			NewCursor: 200,
			Proposals: []models.Proposal{
				{ExternalID: "1", State: models.StateActive, IndexCreated: 150},
			},
		},
	}
	w := &Worker{repo: fs, registry: adapter.NewRegistry(fa)}

	raw, _ := json.Marshal(models.ProposalsJobPayload{IndexerID: ix.ID, FromIndex: ix.Cursor})
	job := repository.ClaimedJob{Kind: models.JobProposals, Job: raw}

	if err := w.RunOnce(context.Background(), job); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if fs.savedCursor != 150 {
		t.Fatalf("expected cursor clamped to active proposal's IndexCreated 150, got %d", fs.savedCursor)
	}
	if fs.savedSpeed <= ix.Speed {
		t.Fatalf("expected speed to ramp up on success, got %d from starting %d", fs.savedSpeed, ix.Speed)
	}
}
