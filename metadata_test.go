package ultrahdr

import "testing"

func TestNewGainMapMetadataIsValid(t *testing.T) {
	m := NewGainMapMetadata()
	if err := ValidateMetadata(m); err != nil {
		t.Fatalf("default metadata invalid: %v", err)
	}
	if !metaAllChannelsIdentical(m) {
		t.Fatalf("default metadata should have identical channels")
	}
}

func TestValidateMetadataNil(t *testing.T) {
	if err := ValidateMetadata(nil); err == nil {
		t.Fatal("expected error for nil metadata")
	}
}

func TestValidateMetadataZeroDenominators(t *testing.T) {
	m := NewGainMapMetadata()
	m.GainMapMin[0].D = 0
	if err := ValidateMetadata(m); err == nil {
		t.Fatal("expected error for zero gain map min denominator")
	}
}

func TestValidateMetadataZeroGamma(t *testing.T) {
	m := NewGainMapMetadata()
	m.GainMapGamma[1].N = 0
	if err := ValidateMetadata(m); err == nil {
		t.Fatal("expected error for zero gamma numerator")
	}
}

func TestValidateMetadataMaxBelowMin(t *testing.T) {
	m := NewGainMapMetadata()
	m.GainMapMin[2] = SignedFraction{N: 2, D: 1}
	m.GainMapMax[2] = SignedFraction{N: 1, D: 1}
	if err := ValidateMetadata(m); err == nil {
		t.Fatal("expected error for max below min")
	}
}

func TestMetaAllChannelsIdenticalDetectsMismatch(t *testing.T) {
	m := NewGainMapMetadata()
	m.GainMapGamma[2] = UnsignedFraction{N: 2, D: 1}
	if metaAllChannelsIdentical(m) {
		t.Fatal("expected channel mismatch to be detected")
	}
}

func TestMetaAllChannelsIdenticalNil(t *testing.T) {
	if !metaAllChannelsIdentical(nil) {
		t.Fatal("nil metadata should be considered identical across channels")
	}
}
