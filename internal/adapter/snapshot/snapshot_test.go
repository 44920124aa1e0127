package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"governance-indexer/internal/adapter"
	"governance-indexer/internal/models"
)

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestProcessFetchesProposals(t *testing.T) {
	now := time.Now().Unix()
	respBody := `{"data":{"proposals":[{"id":"0xabc","title":"Raise debt ceiling","body":"...","link":"https://snapshot.org/#/x/0xabc","discussion":"","choices":[1,2],"quorum":10,"state":"active","author":"0xauthor","created":` + jsonInt(now-100) + `,"start":` + jsonInt(now-100) + `,"end":` + jsonInt(now+1000) + `}]}}`
	srv := newTestServer(t, respBody)
	defer srv.Close()

	a := New(Config{
		Variant:  "SnapshotProposals",
		Endpoint: srv.URL,
		Space:    "test.eth",
		Kind:     models.KindProposals,
	})

	result, err := a.Process(context.Background(), adapter.IndexerState{Cursor: 0, Speed: 1 << 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(result.Proposals))
	}
	if result.Proposals[0].ExternalID != "0xabc" {
		t.Fatalf("unexpected proposal id: %s", result.Proposals[0].ExternalID)
	}
	if result.NewCursor != now {
		t.Fatalf("expected cursor to advance to now (%d), got %d", now, result.NewCursor)
	}
}

func TestSnapshotStateMapping(t *testing.T) {
	cases := map[string]models.ProposalState{
		"pending": models.StatePending,
		"active":  models.StateActive,
		"closed":  models.StateSucceeded,
		"weird":   models.StateUnknown,
	}
	for in, want := range cases {
		if got := snapshotState(in); got != want {
			t.Fatalf("snapshotState(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	a := New(Config{Variant: "SnapshotProposals", Endpoint: "http://x", Space: "s"})
	if a.MinSpeed() != 3600 {
		t.Fatalf("expected default min speed 3600, got %d", a.MinSpeed())
	}
	if a.MaxSpeed() != 7*24*3600 {
		t.Fatalf("expected default max speed, got %d", a.MaxSpeed())
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
