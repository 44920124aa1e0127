package adapter

import "testing"

func TestWindowAdvancesBySpeedBelowHead(t *testing.T) {
	from, to := Window(IndexerState{Cursor: 100, Speed: 1000}, 5000)
	if from != 100 || to != 1100 {
		t.Fatalf("expected [100,1100), got [%d,%d)", from, to)
	}
}

func TestWindowClampsToHeadWhenHeadBehindCursorPlusSpeed(t *testing.T) {
	from, to := Window(IndexerState{Cursor: 4900, Speed: 1000}, 5000)
	if from != 4900 || to != 5000 {
		t.Fatalf("expected [4900,5000), got [%d,%d)", from, to)
	}
}

func TestWindowIdleAtHead(t *testing.T) {
	from, to := Window(IndexerState{Cursor: 5000, Speed: 1000}, 5000)
	if from != 5000 || to != 5000 {
		t.Fatalf("expected no-op window, got [%d,%d)", from, to)
	}
}

func TestRegistryUnknownVariantIsPermanent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("NotRegistered")
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error for unknown variant")
	}
}
