package ultrahdr

import "testing"

func metaWithHeadrooms(base, alt float64) *GainMapMetadata {
	m := NewGainMapMetadata()
	bf, _ := UnsignedFractionFromFloat(base)
	af, _ := UnsignedFractionFromFloat(alt)
	m.BaseHdrHeadroom = bf
	m.AlternateHdrHeadroom = af
	return m
}

func TestCalculateWeightEqualHeadrooms(t *testing.T) {
	m := metaWithHeadrooms(1, 1)
	if w := CalculateWeight(2, m); w != 0 {
		t.Fatalf("equal headrooms should yield zero weight, got %v", w)
	}
}

func TestCalculateWeightMidpoint(t *testing.T) {
	m := metaWithHeadrooms(1, 4)
	if w := CalculateWeight(2.5, m); w != 0.5 {
		t.Fatalf("midpoint weight = %v, want 0.5", w)
	}
}

func TestCalculateWeightClampsToRange(t *testing.T) {
	m := metaWithHeadrooms(1, 4)
	if w := CalculateWeight(0, m); w != 0 {
		t.Fatalf("below base should clamp to 0, got %v", w)
	}
	if w := CalculateWeight(10, m); w != 1 {
		t.Fatalf("above alternate should clamp to 1, got %v", w)
	}
}

func TestCalculateWeightNegativeWhenAlternateBelowBase(t *testing.T) {
	m := metaWithHeadrooms(4, 1)
	if w := CalculateWeight(2.5, m); w != -0.5 {
		t.Fatalf("descending headrooms weight = %v, want -0.5", w)
	}
}
