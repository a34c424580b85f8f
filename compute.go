package ultrahdr

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
	"github.com/pbnjay/memory"
)

// computeEpsilon guards the log of a ratio and the primary-rotation
// negative-excursion check, per spec §6's numerical constants.
const computeEpsilon = 1e-10

// offsetInflationCap bounds how far ComputeRGB will inflate an offset to
// keep a cross-primary conversion's input positive (spec §4.6 step 3).
const offsetInflationCap = 0.1

// ComputeRGB synthesizes a gain map and its metadata from a base + alternate
// RGB pair, per spec §4.6. gm.RequestedWidth/Height, gm.SingleChannel and
// gm.Gamma (<= 0 means 1) are set by the caller before the call; gm.Image is
// not read. On success
// gm.Image and gm.Metadata hold the synthesized gain map. baseICC/altICC
// being non-empty is refused with NotImplemented, matching the "no ICC
// management" non-goal.
func ComputeRGB(base *RGBImage, basePrim ColorGamut, baseTF ColorTransfer, baseICC []byte, alt *RGBImage, altPrim ColorGamut, altTF ColorTransfer, altICC []byte, gm *GainMap, opt *ComputeOptions, diag *Diagnostics) error {
	diag.Reset()
	if base == nil || alt == nil || gm == nil {
		diag.Printf("computeRGB: nil input")
		return invalidArgf("base, alternate and gain map must be non-nil")
	}
	if base.Width != alt.Width || base.Height != alt.Height {
		diag.Printf("computeRGB: base %dx%d does not match alternate %dx%d", base.Width, base.Height, alt.Width, alt.Height)
		return invalidArgf("base and alternate dimensions must match")
	}
	if len(baseICC) > 0 || len(altICC) > 0 {
		diag.Printf("computeRGB: ICC profile present")
		return notImplementedf("ICC profile based color management is not supported")
	}
	if gm.RequestedWidth <= 0 || gm.RequestedHeight <= 0 {
		diag.Printf("computeRGB: gain map target dimensions not configured")
		return invalidArgf("gain map target width/height must be positive")
	}

	w, h := base.Width, base.Height

	mathPrim, err := ChooseGainMapMathColorSpace(basePrim, altPrim)
	if err != nil {
		diag.Printf("computeRGB: %v", err)
		return err
	}

	meta := NewGainMapMetadata()
	meta.UseBaseColorSpace = mathPrim == basePrim

	var baseOffF, altOffF [3]float32
	for c := 0; c < 3; c++ {
		baseOffF[c] = 1.0 / 64.0
		altOffF[c] = 1.0 / 64.0
	}

	if basePrim != altPrim {
		var convertToMath [3][3]float32
		convertBase := !meta.UseBaseColorSpace // base is the side not already in mathPrim
		if meta.UseBaseColorSpace {
			convertToMath, err = primaryMatrix3x3(altPrim, basePrim)
		} else {
			convertToMath, err = primaryMatrix3x3(basePrim, altPrim)
		}
		if err != nil {
			diag.Printf("computeRGB: %v", err)
			return err
		}

		var channelMin [3]float32
		first := true
		src := alt
		srcTF := altTF
		if convertBase {
			src = base
			srcTF = baseTF
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := src.at(x, y)
				lr, _ := gammaToLinear(r, srcTF)
				lg, _ := gammaToLinear(g, srcTF)
				lb, _ := gammaToLinear(b, srcTF)
				rotated := applyMatrix3x3(convertToMath, rgb{lr, lg, lb})
				for i, v := range []float32{rotated.r, rotated.g, rotated.b} {
					if first || v < channelMin[i] {
						channelMin[i] = v
					}
				}
				first = false
			}
		}
		for c := 0; c < 3; c++ {
			if channelMin[c] < -computeEpsilon {
				inflate := -channelMin[c]
				if inflate > offsetInflationCap {
					inflate = offsetInflationCap
				}
				if convertBase {
					altOffF[c] += inflate
				} else {
					baseOffF[c] += inflate
				}
			}
		}
	}

	numChannels := 3
	if gm.SingleChannel {
		numChannels = 1
	}
	budget := uint64(numChannels) * uint64(w) * uint64(h) * 4
	if memory.FreeMemory() < budget {
		diag.Printf("computeRGB: insufficient memory for %d float planes of %dx%d", numChannels, w, h)
		return outOfMemoryf("insufficient memory to allocate gain map float planes")
	}

	gainMapF := make([][]float32, numChannels)
	for c := range gainMapF {
		gainMapF[c] = make([]float32, w*h)
	}

	var yCoeff [3]float32
	if gm.SingleChannel {
		yCoeff, err = yCoefficients(mathPrim)
		if err != nil {
			diag.Printf("computeRGB: %v", err)
			return err
		}
	}

	baseToMath, altToMath := [3][3]float32{}, [3][3]float32{}
	rotateBase := basePrim != mathPrim
	rotateAlt := altPrim != mathPrim
	if rotateBase {
		baseToMath, err = primaryMatrix3x3(basePrim, mathPrim)
		if err != nil {
			return err
		}
	}
	if rotateAlt {
		altToMath, err = primaryMatrix3x3(altPrim, mathPrim)
		if err != nil {
			return err
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			br, bg, bb, _ := base.at(x, y)
			lbr, _ := gammaToLinear(br, baseTF)
			lbg, _ := gammaToLinear(bg, baseTF)
			lbb, _ := gammaToLinear(bb, baseTF)
			baseLinear := rgb{lbr, lbg, lbb}
			if rotateBase {
				baseLinear = applyMatrix3x3(baseToMath, baseLinear)
			}

			ar, ag, ab, _ := alt.at(x, y)
			lar, _ := gammaToLinear(ar, altTF)
			lag, _ := gammaToLinear(ag, altTF)
			lab, _ := gammaToLinear(ab, altTF)
			altLinear := rgb{lar, lag, lab}
			if rotateAlt {
				altLinear = applyMatrix3x3(altToMath, altLinear)
			}

			idx := y*w + x
			if gm.SingleChannel {
				baseY := yCoeff[0]*baseLinear.r + yCoeff[1]*baseLinear.g + yCoeff[2]*baseLinear.b
				altY := yCoeff[0]*altLinear.r + yCoeff[1]*altLinear.g + yCoeff[2]*altLinear.b
				ratio := (altY + altOffF[0]) / (baseY + baseOffF[0])
				if ratio < computeEpsilon {
					ratio = computeEpsilon
				}
				gainMapF[0][idx] = log2f(ratio)
				continue
			}
			baseCh := [3]float32{baseLinear.r, baseLinear.g, baseLinear.b}
			altCh := [3]float32{altLinear.r, altLinear.g, altLinear.b}
			for c := 0; c < 3; c++ {
				ratio := (altCh[c] + altOffF[c]) / (baseCh[c] + baseOffF[c])
				if ratio < computeEpsilon {
					ratio = computeEpsilon
				}
				gainMapF[c][idx] = log2f(ratio)
			}
		}
	}

	manualBase, manualAlt := resolveManualHeadrooms(opt)
	if !validHeadroomScalar(manualBase) || !validHeadroomScalar(manualAlt) {
		diag.Printf("computeRGB: manual HDR headroom unset or invalid (base=%v alt=%v)", manualBase, manualAlt)
		return invalidArgf("manual HDR headrooms must be non-negative and finite")
	}
	baseHeadroomFrac, err := UnsignedFractionFromFloat(manualBase)
	if err != nil {
		diag.Printf("computeRGB: %v", err)
		return invalidArgf("failed to encode base HDR headroom: %v", err)
	}
	altHeadroomFrac, err := UnsignedFractionFromFloat(manualAlt)
	if err != nil {
		diag.Printf("computeRGB: %v", err)
		return invalidArgf("failed to encode alternate HDR headroom: %v", err)
	}
	meta.BaseHdrHeadroom = baseHeadroomFrac
	meta.AlternateHdrHeadroom = altHeadroomFrac

	if manualAlt < manualBase {
		for c := range gainMapF {
			for i := range gainMapF[c] {
				gainMapF[c][i] = -gainMapF[c][i]
			}
		}
	}

	gamma := gm.Gamma
	if gamma <= 0 {
		gamma = 1.0
	}

	logMin := make([]float32, numChannels)
	logMax := make([]float32, numChannels)
	for c := 0; c < numChannels; c++ {
		mn, mx, err := FindMinMaxWithoutOutliers(gainMapF[c])
		if err != nil {
			diag.Printf("computeRGB: %v", err)
			return err
		}
		logMin[c], logMax[c] = mn, mx
		minFrac, err := SignedFractionFromFloat(float64(mn))
		if err != nil {
			return invalidArgf("failed to encode gain map min: %v", err)
		}
		maxFrac, err := SignedFractionFromFloat(float64(mx))
		if err != nil {
			return invalidArgf("failed to encode gain map max: %v", err)
		}
		gammaFrac, err := UnsignedFractionFromFloat(float64(gamma))
		if err != nil {
			return invalidArgf("failed to encode gain map gamma: %v", err)
		}
		baseOffFrac, err := SignedFractionFromFloat(float64(baseOffF[c]))
		if err != nil {
			return invalidArgf("failed to encode base offset: %v", err)
		}
		altOffFrac, err := SignedFractionFromFloat(float64(altOffF[c]))
		if err != nil {
			return invalidArgf("failed to encode alternate offset: %v", err)
		}
		meta.GainMapMin[c] = minFrac
		meta.GainMapMax[c] = maxFrac
		meta.GainMapGamma[c] = gammaFrac
		meta.BaseOffset[c] = baseOffFrac
		meta.AlternateOffset[c] = altOffFrac
	}
	if numChannels == 1 {
		for _, c := range []int{1, 2} {
			meta.GainMapMin[c] = meta.GainMapMin[0]
			meta.GainMapMax[c] = meta.GainMapMax[0]
			meta.GainMapGamma[c] = meta.GainMapGamma[0]
			meta.BaseOffset[c] = meta.BaseOffset[0]
			meta.AlternateOffset[c] = meta.AlternateOffset[0]
		}
	}

	quant := make([][]uint8, numChannels)
	for c := 0; c < numChannels; c++ {
		quant[c] = make([]uint8, w*h)
		rng := logMax[c] - logMin[c]
		if rng < 0 {
			rng = 0
		}
		if rng == 0 {
			continue
		}
		for i, v := range gainMapF[c] {
			norm := (v - logMin[c]) / rng
			norm = clamp(norm, 0, 1)
			encoded := float32(math.Pow(float64(norm), float64(gamma)))
			quant[c][i] = uint8(clamp(encoded*255.0+0.5, 0, 255))
		}
	}

	var gmImage image.Image
	if gm.SingleChannel {
		out := image.NewGray(image.Rect(0, 0, w, h))
		copy(out.Pix, quant[0])
		gmImage = out
	} else {
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			out.Set(i%w, i/w, color.RGBA{R: quant[0][i], G: quant[1][i], B: quant[2][i], A: 0xFF})
		}
		gmImage = out
	}

	if gm.RequestedWidth != w || gm.RequestedHeight != h {
		gmImage = resize.Resize(uint(gm.RequestedWidth), uint(gm.RequestedHeight), gmImage, resize.Bilinear)
	}

	gm.Image = gmImage
	gm.Metadata = *meta
	return nil
}
