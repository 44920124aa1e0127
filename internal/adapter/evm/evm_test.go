package evm

import (
	"encoding/json"
	"testing"

	"governance-indexer/internal/adapter"
	"governance-indexer/internal/rpcpool"
)

func TestNewRejectsInvalidAddress(t *testing.T) {
	_, err := New(Config{
		Variant:      "CompoundMainnetProposals",
		Chain:        "ethereum",
		ContractAddr: "not-an-address",
	}, rpcpool.NewRegistry())
	if err == nil {
		t.Fatal("expected error for invalid contract address")
	}
}

func TestNewAppliesSpeedDefaults(t *testing.T) {
	a, err := New(Config{
		Variant:      "CompoundMainnetProposals",
		Chain:        "ethereum",
		ContractAddr: "0x5aEDA56215b167893e80B4fE645BA6d5Bab767DE",
	}, rpcpool.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.MinSpeed() != 500 || a.MaxSpeed() != 50_000 {
		t.Fatalf("expected default speed bounds, got [%d,%d]", a.MinSpeed(), a.MaxSpeed())
	}
}

func TestAdapterChoiceCompoundRemap(t *testing.T) {
	raw := adapterChoice(SchemeCompound, 0) // Against in Compound's own encoding
	var got int
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != 1 { // canonical Against
		t.Fatalf("expected canonical Against(1), got %d", got)
	}
}

func TestAdapterChoiceBinaryPassthrough(t *testing.T) {
	raw := adapterChoice(SchemeBinary, 0)
	var got int
	json.Unmarshal(raw, &got)
	if got != 0 {
		t.Fatalf("expected passthrough 0, got %d", got)
	}
}

func TestFirstLineTruncatesLongDescription(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	got := firstLine(string(long))
	if len(got) != 120 {
		t.Fatalf("expected truncation to 120 chars, got %d", len(got))
	}
}

func TestFirstLineStopsAtNewline(t *testing.T) {
	got := firstLine("title line\nbody continues")
	if got != "title line" {
		t.Fatalf("expected %q, got %q", "title line", got)
	}
}

var _ adapter.SourceAdapter = (*Adapter)(nil)
