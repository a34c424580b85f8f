package ultrahdr

import (
	"image"
	"math"

	"github.com/nfnt/resize"
)

// rgb is a working linear-light triplet, used throughout the apply/compute
// math before it is packed back into an RGBImage.
type rgb struct {
	r, g, b float32
}

// RGBImage is a packed, row-major RGBA float plane: one interleaved
// [r,g,b,a] quadruplet per pixel, each component already encoded in the
// image's own transfer function and primaries. Stride is in pixels, not
// floats, and may exceed Width to allow a borrowed backing array.
type RGBImage struct {
	Width, Height int
	Stride        int
	Pix           []float32
}

// NewRGBImage allocates a zeroed, tightly packed RGBImage.
func NewRGBImage(w, h int) *RGBImage {
	return &RGBImage{Width: w, Height: h, Stride: w, Pix: make([]float32, w*h*4)}
}

func (im *RGBImage) at(x, y int) (r, g, b, a float32) {
	idx := (y*im.Stride + x) * 4
	return im.Pix[idx], im.Pix[idx+1], im.Pix[idx+2], im.Pix[idx+3]
}

func (im *RGBImage) set(x, y int, r, g, b, a float32) {
	idx := (y*im.Stride + x) * 4
	im.Pix[idx], im.Pix[idx+1], im.Pix[idx+2], im.Pix[idx+3] = r, g, b, a
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func max3f(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// gainMapChannelsAt reads the gain map's per-channel value in [0,1] at (x,y),
// broadcasting a single-channel (luma) gain map across all three channels.
func gainMapChannelsAt(img image.Image, x, y int) (g0, g1, g2 float32) {
	switch im := img.(type) {
	case *image.Gray:
		v := float32(im.GrayAt(x, y).Y) / 255.0
		return v, v, v
	case *image.Gray16:
		v := float32(im.Gray16At(x, y).Y) / 65535.0
		return v, v, v
	default:
		r, g, b, _ := img.At(x, y).RGBA()
		return float32(r) / 65535.0, float32(g) / 65535.0, float32(b) / 65535.0
	}
}

// rescaleGainMapImage obtains a copy of img resized to (w, h) via the
// external rescaler, per spec §4.5's general path. A same-size image is
// returned unchanged.
func rescaleGainMapImage(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.Bilinear)
}

// ApplyRGB reconstructs an output image from base + gain map at the given
// display HDR headroom, per spec §4.5. out must be preallocated at the
// base image's width/height (any other size is rejected with
// InvalidArgument); its Pix is overwritten in full. When
// wantCLLI is true, the returned *CLLI carries the frame's max/average
// content light level; otherwise it is nil.
func ApplyRGB(base *RGBImage, basePrim ColorGamut, baseTF ColorTransfer, gm *GainMap, headroom float64, outPrim ColorGamut, outTF ColorTransfer, out *RGBImage, wantCLLI bool, diag *Diagnostics) (*CLLI, error) {
	diag.Reset()
	if base == nil || gm == nil || out == nil {
		diag.Printf("applyRGB: nil input")
		return nil, invalidArgf("base, gain map and output must be non-nil")
	}
	if headroom < 0 {
		diag.Printf("applyRGB: negative headroom %v", headroom)
		return nil, invalidArgf("headroom must be non-negative")
	}
	if out.Width != base.Width || out.Height != base.Height {
		diag.Printf("applyRGB: output dimensions %dx%d do not match base %dx%d", out.Width, out.Height, base.Width, base.Height)
		return nil, invalidArgf("output dimensions must match base dimensions")
	}
	if err := ValidateMetadata(&gm.Metadata); err != nil {
		diag.Printf("applyRGB: %v", err)
		return nil, err
	}
	gmImg, ok := gm.Image.(image.Image)
	if !ok || gmImg == nil {
		diag.Printf("applyRGB: gain map pixel access unsupported")
		return nil, notImplementedf("gain map image type is not a supported pixel source")
	}

	m := &gm.Metadata
	mathPrim := basePrim
	if !m.UseBaseColorSpace && m.AlternateColorPrimaries != GamutUnspecified {
		mathPrim = m.AlternateColorPrimaries
	}
	w := float32(CalculateWeight(headroom, m))

	// Fast path: identity weight, matching layout, byte-for-byte base copy.
	if w == 0 && outTF == baseTF && outPrim == basePrim && out.Stride == base.Stride && len(out.Pix) == len(base.Pix) {
		copy(out.Pix, base.Pix)
		return applyCLLI(wantCLLI, base, baseTF, basePrim, mathPrim)
	}

	width, height := base.Width, base.Height

	if w == 0 {
		var rotate [3][3]float32
		needRotate := basePrim != outPrim
		if needRotate {
			var err error
			rotate, err = primaryMatrix3x3(basePrim, outPrim)
			if err != nil {
				diag.Printf("applyRGB: %v", err)
				return nil, err
			}
		}
		var rgbMax float32
		var rgbSum float32
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, a := base.at(x, y)
				lr, err := gammaToLinear(r, baseTF)
				if err != nil {
					return nil, err
				}
				lg, err := gammaToLinear(g, baseTF)
				if err != nil {
					return nil, err
				}
				lb, err := gammaToLinear(b, baseTF)
				if err != nil {
					return nil, err
				}
				lin := rgb{lr, lg, lb}
				if needRotate {
					lin = applyMatrix3x3(rotate, lin)
				}
				pixelMax := max3f(lin.r, lin.g, lin.b)
				if pixelMax > rgbMax {
					rgbMax = pixelMax
				}
				rgbSum += pixelMax
				or, _ := linearToGamma(lin.r, outTF)
				og, _ := linearToGamma(lin.g, outTF)
				ob, _ := linearToGamma(lin.b, outTF)
				out.set(x, y, clamp(or, 0, 1), clamp(og, 0, 1), clamp(ob, 0, 1), a)
			}
		}
		return cllFromAccum(wantCLLI, rgbMax, rgbSum, width, height), nil
	}

	gmBounds := gmImg.Bounds()
	if gmBounds.Dx() != width || gmBounds.Dy() != height {
		gmImg = rescaleGainMapImage(gmImg, width, height)
		gmBounds = gmImg.Bounds()
	}

	var gammaInv, minF, maxF, baseOffF, altOffF [3]float32
	for c := 0; c < 3; c++ {
		gammaInv[c] = 1.0 / float32(m.GainMapGamma[c].ToFloat())
		minF[c] = float32(m.GainMapMin[c].ToFloat())
		maxF[c] = float32(m.GainMapMax[c].ToFloat())
		baseOffF[c] = float32(m.BaseOffset[c].ToFloat())
		altOffF[c] = float32(m.AlternateOffset[c].ToFloat())
	}

	var baseToMath, mathToOut [3][3]float32
	rotateBaseToMath := basePrim != mathPrim
	rotateMathToOut := mathPrim != outPrim
	if rotateBaseToMath {
		var err error
		baseToMath, err = primaryMatrix3x3(basePrim, mathPrim)
		if err != nil {
			diag.Printf("applyRGB: %v", err)
			return nil, err
		}
	}
	if rotateMathToOut {
		var err error
		mathToOut, err = primaryMatrix3x3(mathPrim, outPrim)
		if err != nil {
			diag.Printf("applyRGB: %v", err)
			return nil, err
		}
	}

	var rgbMax float32
	var rgbSum float32
	for y := 0; y < height; y++ {
		gy := gmBounds.Min.Y + y
		for x := 0; x < width; x++ {
			gx := gmBounds.Min.X + x
			r, g, b, a := base.at(x, y)
			lr, err := gammaToLinear(r, baseTF)
			if err != nil {
				return nil, err
			}
			lg, err := gammaToLinear(g, baseTF)
			if err != nil {
				return nil, err
			}
			lb, err := gammaToLinear(b, baseTF)
			if err != nil {
				return nil, err
			}
			baseLinear := rgb{lr, lg, lb}
			if rotateBaseToMath {
				baseLinear = applyMatrix3x3(baseToMath, baseLinear)
			}

			g0, g1, g2 := gainMapChannelsAt(gmImg, gx, gy)
			gainCh := [3]float32{g0, g1, g2}
			baseCh := [3]float32{baseLinear.r, baseLinear.g, baseLinear.b}
			var toneLinear [3]float32
			for c := 0; c < 3; c++ {
				gv := gainCh[c]
				if gammaInv[c] != 1 {
					gv = float32(math.Pow(float64(gv), float64(gammaInv[c])))
				}
				logv := lerp(minF[c], maxF[c], gv)
				toneLinear[c] = (baseCh[c]+baseOffF[c])*exp2f(logv*w) - altOffF[c]
			}
			tone := rgb{toneLinear[0], toneLinear[1], toneLinear[2]}
			pixelMax := max3f(tone.r, tone.g, tone.b)
			if pixelMax > rgbMax {
				rgbMax = pixelMax
			}
			rgbSum += pixelMax

			if rotateMathToOut {
				tone = applyMatrix3x3(mathToOut, tone)
			}
			or, err := linearToGamma(tone.r, outTF)
			if err != nil {
				return nil, err
			}
			og, err := linearToGamma(tone.g, outTF)
			if err != nil {
				return nil, err
			}
			ob, err := linearToGamma(tone.b, outTF)
			if err != nil {
				return nil, err
			}
			out.set(x, y, clamp(or, 0, 1), clamp(og, 0, 1), clamp(ob, 0, 1), a)
		}
	}

	return cllFromAccum(wantCLLI, rgbMax, rgbSum, width, height), nil
}

func applyCLLI(wantCLLI bool, base *RGBImage, baseTF ColorTransfer, basePrim, mathPrim ColorGamut) (*CLLI, error) {
	if !wantCLLI {
		return nil, nil
	}
	var rgbMax, rgbSum float32
	for y := 0; y < base.Height; y++ {
		for x := 0; x < base.Width; x++ {
			r, g, b, _ := base.at(x, y)
			lr, _ := gammaToLinear(r, baseTF)
			lg, _ := gammaToLinear(g, baseTF)
			lb, _ := gammaToLinear(b, baseTF)
			pixelMax := max3f(lr, lg, lb)
			if pixelMax > rgbMax {
				rgbMax = pixelMax
			}
			rgbSum += pixelMax
		}
	}
	return cllFromAccum(true, rgbMax, rgbSum, base.Width, base.Height), nil
}

func cllFromAccum(wantCLLI bool, rgbMax, rgbSum float32, w, h int) *CLLI {
	if !wantCLLI {
		return nil
	}
	maxCLL := roundf(rgbMax * sdrWhiteNits)
	maxPALL := roundf(rgbSum / float32(w*h) * sdrWhiteNits)
	return &CLLI{MaxCLL: clampToU16(maxCLL), MaxPALL: clampToU16(maxPALL)}
}

func clampToU16(v float32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
