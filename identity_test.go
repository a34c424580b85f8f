package ultrahdr

import "testing"

func TestSameGainMapMetadataNilHandling(t *testing.T) {
	m := NewGainMapMetadata()
	if !SameGainMapMetadata(nil, nil) {
		t.Fatal("two nil metadata should be considered the same")
	}
	if SameGainMapMetadata(m, nil) || SameGainMapMetadata(nil, m) {
		t.Fatal("nil vs non-nil metadata should differ")
	}
}

func TestSameGainMapMetadataEqual(t *testing.T) {
	a := NewGainMapMetadata()
	b := NewGainMapMetadata()
	if !SameGainMapMetadata(a, b) {
		t.Fatal("two default metadata instances should be equal")
	}
}

func TestSameGainMapMetadataDetectsDifference(t *testing.T) {
	a := NewGainMapMetadata()
	b := NewGainMapMetadata()
	b.GainMapMax[1] = SignedFraction{N: 5, D: 1}
	if SameGainMapMetadata(a, b) {
		t.Fatal("expected mismatch after changing gain map max")
	}

	c := NewGainMapMetadata()
	d := NewGainMapMetadata()
	af, _ := UnsignedFractionFromFloat(2)
	d.AlternateHdrHeadroom = af
	if SameGainMapMetadata(c, d) {
		t.Fatal("expected mismatch after changing alternate headroom")
	}
}

func TestSameGainMapAltMetadataNilHandling(t *testing.T) {
	m := NewGainMapMetadata()
	if !SameGainMapAltMetadata(nil, nil) {
		t.Fatal("two nil metadata should be considered the same")
	}
	if SameGainMapAltMetadata(m, nil) || SameGainMapAltMetadata(nil, m) {
		t.Fatal("nil vs non-nil metadata should differ")
	}
}

func TestSameGainMapAltMetadataDetectsICCDifference(t *testing.T) {
	a := NewGainMapMetadata()
	b := NewGainMapMetadata()
	a.AlternateICC = []byte{1, 2, 3}
	if SameGainMapAltMetadata(a, b) {
		t.Fatal("expected mismatch for differing ICC bytes")
	}
}

func TestSameGainMapAltMetadataDetectsCLLIDifference(t *testing.T) {
	a := NewGainMapMetadata()
	b := NewGainMapMetadata()
	a.CLLI = &CLLI{MaxCLL: 1000, MaxPALL: 400}
	if SameGainMapAltMetadata(a, b) {
		t.Fatal("expected mismatch when only one side has CLLI")
	}
	b.CLLI = &CLLI{MaxCLL: 1000, MaxPALL: 400}
	if !SameGainMapAltMetadata(a, b) {
		t.Fatal("expected match for equal CLLI values")
	}
	b.CLLI = &CLLI{MaxCLL: 500, MaxPALL: 400}
	if SameGainMapAltMetadata(a, b) {
		t.Fatal("expected mismatch for differing CLLI values")
	}
}

func TestSameGainMapAltMetadataDetectsDepthDifference(t *testing.T) {
	a := NewGainMapMetadata()
	b := NewGainMapMetadata()
	a.AlternateDepth = 8
	b.AlternateDepth = 10
	if SameGainMapAltMetadata(a, b) {
		t.Fatal("expected mismatch for differing alternate depth")
	}
}
