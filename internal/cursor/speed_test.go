package cursor

import "testing"

func TestAdjustSpeedSuccessRampUp(t *testing.T) {
	got := AdjustSpeed(1000, 10, 10000, true)
	if got != 1250 {
		t.Fatalf("expected 1250, got %d", got)
	}
}

func TestAdjustSpeedFailureBackoff(t *testing.T) {
	got := AdjustSpeed(1000, 10, 10000, false)
	if got != 750 {
		t.Fatalf("expected 750, got %d", got)
	}
}

func TestAdjustSpeedBoundedByMax(t *testing.T) {
	got := AdjustSpeed(9000, 10, 10000, true)
	if got != 10000 {
		t.Fatalf("expected clamp to max 10000, got %d", got)
	}
}

func TestAdjustSpeedBoundedByMin(t *testing.T) {
	got := AdjustSpeed(12, 10, 10000, false)
	if got != 10 {
		t.Fatalf("expected clamp to min 10, got %d", got)
	}
}

func TestAdjustSpeedRoundTrip(t *testing.T) {
	// Well inside bounds: up then down should land at <= 15/16 of original,
	// integer floor tolerated.
	s := int64(16000)
	up := AdjustSpeed(s, 10, 1000000, true)
	down := AdjustSpeed(up, 10, 1000000, false)
	upper := s * 15 / 16
	if down > upper {
		t.Fatalf("round trip %d exceeds expected upper bound %d", down, upper)
	}
}
