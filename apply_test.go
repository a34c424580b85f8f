package ultrahdr

import (
	"image"
	"image/color"
	"testing"
)

func TestApplyRGBNilInputs(t *testing.T) {
	var diag Diagnostics
	out := NewRGBImage(1, 1)
	if _, err := ApplyRGB(nil, GamutBT709, TransferLinear, &GainMap{}, 1, GamutBT709, TransferLinear, out, false, &diag); err == nil {
		t.Fatal("expected error for nil base")
	}
	base := NewRGBImage(1, 1)
	if _, err := ApplyRGB(base, GamutBT709, TransferLinear, nil, 1, GamutBT709, TransferLinear, out, false, &diag); err == nil {
		t.Fatal("expected error for nil gain map")
	}
}

func TestApplyRGBDimensionMismatch(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(4, 4)
	out := NewRGBImage(2, 2)
	gm := &GainMap{Metadata: *NewGainMapMetadata(), Image: image.NewGray(image.Rect(0, 0, 4, 4))}
	if _, err := ApplyRGB(base, GamutBT709, TransferLinear, gm, 1, GamutBT709, TransferLinear, out, false, &diag); err == nil {
		t.Fatal("expected error for mismatched output dimensions")
	}
}

func TestApplyRGBNegativeHeadroom(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(2, 2)
	out := NewRGBImage(2, 2)
	gm := &GainMap{Metadata: *NewGainMapMetadata(), Image: image.NewGray(image.Rect(0, 0, 2, 2))}
	if _, err := ApplyRGB(base, GamutBT709, TransferLinear, gm, -1, GamutBT709, TransferLinear, out, false, &diag); err == nil {
		t.Fatal("expected error for negative headroom")
	}
}

func TestApplyRGBZeroWeightFastPathCopiesBase(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(2, 2)
	for i := range base.Pix {
		base.Pix[i] = 0.25
	}
	out := NewRGBImage(2, 2)
	meta := NewGainMapMetadata()
	meta.AlternateHdrHeadroom = meta.BaseHdrHeadroom // base == alternate headroom, so weight is always 0
	gm := &GainMap{Metadata: *meta, Image: image.NewGray(image.Rect(0, 0, 2, 2))}

	if _, err := ApplyRGB(base, GamutBT709, TransferLinear, gm, 1, GamutBT709, TransferLinear, out, false, &diag); err != nil {
		t.Fatalf("ApplyRGB: %v", err)
	}
	for i, v := range out.Pix {
		if v != base.Pix[i] {
			t.Fatalf("fast path should copy base verbatim at index %d: got %v, want %v", i, v, base.Pix[i])
		}
	}
}

func TestApplyRGBAppliesGain(t *testing.T) {
	var diag Diagnostics
	base := NewRGBImage(1, 1)
	base.set(0, 0, 0.125, 0.125, 0.125, 1)
	out := NewRGBImage(1, 1)

	meta := NewGainMapMetadata()
	meta.BaseHdrHeadroom = UnsignedFraction{N: 1, D: 1}
	meta.AlternateHdrHeadroom = UnsignedFraction{N: 4, D: 1}
	for c := 0; c < 3; c++ {
		meta.GainMapMin[c] = SignedFraction{N: 0, D: 1}
		meta.GainMapMax[c] = SignedFraction{N: 2, D: 1} // log2(boost) up to 4x
		meta.BaseOffset[c] = SignedFraction{N: 0, D: 1}
		meta.AlternateOffset[c] = SignedFraction{N: 0, D: 1}
	}
	gm := &GainMap{Metadata: *meta, Image: image.NewGray(image.Rect(0, 0, 1, 1))}
	gm.Image.(*image.Gray).SetGray(0, 0, color.Gray{Y: 255}) // gain value 1.0 -> full boost

	clli, err := ApplyRGB(base, GamutBT709, TransferLinear, gm, 4, GamutBT709, TransferLinear, out, true, &diag)
	if err != nil {
		t.Fatalf("ApplyRGB: %v", err)
	}
	r, _, _, _ := out.at(0, 0)
	if want := float32(0.5); r < want-0.01 || r > want+0.01 { // 0.125 * 4, inside the [0,1] output clamp
		t.Fatalf("boosted channel = %v, want ~%v", r, want)
	}
	if clli == nil {
		t.Fatal("expected CLLI when requested")
	}
}
