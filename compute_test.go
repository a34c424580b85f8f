package ultrahdr

import (
	"image"
	"testing"
)

func TestComputeRGBNilInputs(t *testing.T) {
	var diag Diagnostics
	gm := &GainMap{RequestedWidth: 1, RequestedHeight: 1}
	opt := &ComputeOptions{ManualBaseHdrHeadroom: 1, ManualAlternateHdrHeadroom: 4}
	base := NewRGBImage(1, 1)
	if err := ComputeRGB(nil, GamutBT709, TransferLinear, nil, base, GamutBT709, TransferLinear, nil, gm, opt, &diag); err == nil {
		t.Fatal("expected error for nil base")
	}
	if err := ComputeRGB(base, GamutBT709, TransferLinear, nil, nil, GamutBT709, TransferLinear, nil, gm, opt, &diag); err == nil {
		t.Fatal("expected error for nil alternate")
	}
	if err := ComputeRGB(base, GamutBT709, TransferLinear, nil, base, GamutBT709, TransferLinear, nil, nil, opt, &diag); err == nil {
		t.Fatal("expected error for nil gain map")
	}
}

func TestComputeRGBDimensionMismatch(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(4, 4)
	alt := NewRGBImage(2, 2)
	gm := &GainMap{RequestedWidth: 4, RequestedHeight: 4}
	opt := &ComputeOptions{ManualBaseHdrHeadroom: 1, ManualAlternateHdrHeadroom: 4}
	if err := ComputeRGB(base, GamutBT709, TransferLinear, nil, alt, GamutBT709, TransferLinear, nil, gm, opt, &diag); err == nil {
		t.Fatal("expected error for mismatched dimensions")
	}
}

func TestComputeRGBRejectsICC(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(2, 2)
	alt := NewRGBImage(2, 2)
	gm := &GainMap{RequestedWidth: 2, RequestedHeight: 2}
	opt := &ComputeOptions{ManualBaseHdrHeadroom: 1, ManualAlternateHdrHeadroom: 4}
	if err := ComputeRGB(base, GamutBT709, TransferLinear, []byte{1, 2, 3}, alt, GamutBT709, TransferLinear, nil, gm, opt, &diag); err == nil {
		t.Fatal("expected error for non-empty base ICC profile")
	}
}

func TestComputeRGBRequiresTargetDimensions(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(2, 2)
	alt := NewRGBImage(2, 2)
	gm := &GainMap{}
	opt := &ComputeOptions{ManualBaseHdrHeadroom: 1, ManualAlternateHdrHeadroom: 4}
	if err := ComputeRGB(base, GamutBT709, TransferLinear, nil, alt, GamutBT709, TransferLinear, nil, gm, opt, &diag); err == nil {
		t.Fatal("expected error for unset gain map target dimensions")
	}
}

func TestComputeRGBInvalidManualHeadroom(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(2, 2)
	alt := NewRGBImage(2, 2)
	gm := &GainMap{RequestedWidth: 2, RequestedHeight: 2}
	opt := &ComputeOptions{ManualBaseHdrHeadroom: -1, ManualAlternateHdrHeadroom: 4}
	if err := ComputeRGB(base, GamutBT709, TransferLinear, nil, alt, GamutBT709, TransferLinear, nil, gm, opt, &diag); err == nil {
		t.Fatal("expected error for negative manual base headroom")
	}
}

func TestComputeRGBProducesSaneMetadata(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(4, 4)
	alt := NewRGBImage(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			base.set(x, y, 0.25, 0.25, 0.25, 1)
			alt.set(x, y, 1.0, 1.0, 1.0, 1)
		}
	}
	gm := &GainMap{RequestedWidth: 4, RequestedHeight: 4, SingleChannel: true}
	opt := &ComputeOptions{ManualBaseHdrHeadroom: 1, ManualAlternateHdrHeadroom: 4}

	if err := ComputeRGB(base, GamutBT709, TransferLinear, nil, alt, GamutBT709, TransferLinear, nil, gm, opt, &diag); err != nil {
		t.Fatalf("ComputeRGB: %v", err)
	}
	if err := ValidateMetadata(&gm.Metadata); err != nil {
		t.Fatalf("computed metadata invalid: %v", err)
	}
	if gm.Image == nil {
		t.Fatal("expected a gain map image to be produced")
	}
	img, ok := gm.Image.(image.Image)
	if !ok {
		t.Fatalf("expected gain map image to satisfy image.Image, got %T", gm.Image)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("gain map image has wrong dimensions: %v", b)
	}
	if got := gm.Metadata.BaseHdrHeadroom.ToFloat(); got != 1 {
		t.Fatalf("base headroom = %v, want 1", got)
	}
	if got := gm.Metadata.AlternateHdrHeadroom.ToFloat(); got != 4 {
		t.Fatalf("alternate headroom = %v, want 4", got)
	}
	// Alt is brighter than base at every pixel, so the encoded gain map max
	// should be positive (boost), matching a uniformly brighter alternate.
	if gm.Metadata.GainMapMax[0].ToFloat() <= 0 {
		t.Fatalf("expected positive gain map max for brighter alternate, got %v", gm.Metadata.GainMapMax[0].ToFloat())
	}
}
