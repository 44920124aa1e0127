package producer

import "testing"

func TestDisabledVariantsAreSkipped(t *testing.T) {
	for _, v := range []string{"MakerPollArbitrum", "AaveV3PolygonPos", "AaveV3Avalanche"} {
		if !disabledVariants[v] {
			t.Fatalf("expected %s to be in the disabled set", v)
		}
	}
	if disabledVariants["CompoundMainnetProposals"] {
		t.Fatal("did not expect an unrelated variant to be disabled")
	}
}

func TestBacktrackFractionMatchesSpec(t *testing.T) {
	cursor := int64(10_000)
	from := int64(float64(cursor) * backtrackFraction)
	if from != 9000 {
		t.Fatalf("expected floor(10000*0.9)=9000, got %d", from)
	}
}

func TestBacktrackFractionFloorsAtZero(t *testing.T) {
	cursor := int64(0)
	from := int64(float64(cursor) * backtrackFraction)
	if from < 0 {
		from = 0
	}
	if from != 0 {
		t.Fatalf("expected 0, got %d", from)
	}
}
