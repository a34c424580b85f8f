package ultrahdr

import "testing"

func TestChooseGainMapMathColorSpaceIdentical(t *testing.T) {
	got, err := ChooseGainMapMathColorSpace(GamutBT709, GamutBT709)
	if err != nil {
		t.Fatalf("ChooseGainMapMathColorSpace: %v", err)
	}
	if got != GamutBT709 {
		t.Fatalf("identical primaries should return as-is, got %v", got)
	}
}

func TestChooseGainMapMathColorSpacePicksOne(t *testing.T) {
	got, err := ChooseGainMapMathColorSpace(GamutBT709, GamutDisplayP3)
	if err != nil {
		t.Fatalf("ChooseGainMapMathColorSpace: %v", err)
	}
	if got != GamutBT709 && got != GamutDisplayP3 {
		t.Fatalf("expected one of the two input primaries, got %v", got)
	}
}

func TestChooseGainMapMathColorSpaceUnsupportedPrimary(t *testing.T) {
	if _, err := ChooseGainMapMathColorSpace(ColorGamut(999), GamutBT709); err == nil {
		t.Fatal("expected error for unsupported primary")
	}
}
