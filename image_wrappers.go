package ultrahdr

import (
	"image"
	"image/color"
)

// ApplyImage is the YUV/codec-level wrapper around ApplyRGB: it decodes an
// arbitrary image.Image (typically produced by image/jpeg or image/png)
// into an RGBImage, runs the RGB apply engine, and packs the result back
// into an image.Image. ICC-profile-carrying images are refused, since the
// math core has no color management step for them.
func ApplyImage(base image.Image, basePrim ColorGamut, baseTF ColorTransfer, baseICC []byte, gm *GainMap, headroom float64, outPrim ColorGamut, outTF ColorTransfer, wantCLLI bool, diag *Diagnostics) (image.Image, *CLLI, error) {
	if base == nil || gm == nil {
		return nil, nil, invalidArgf("base and gain map must be non-nil")
	}
	if len(baseICC) > 0 {
		return nil, nil, notImplementedf("ICC profile based color management is not supported")
	}

	baseRGB := imageToRGBImage(base)
	out := NewRGBImage(baseRGB.Width, baseRGB.Height)
	clli, err := ApplyRGB(baseRGB, basePrim, baseTF, gm, headroom, outPrim, outTF, out, wantCLLI, diag)
	if err != nil {
		return nil, nil, err
	}
	return rgbImageToStdImage(out), clli, nil
}

// ComputeImage is the YUV/codec-level wrapper around ComputeRGB: it decodes
// two arbitrary images (or, for alt, a linear HDRImage such as a decoded
// EXR) into RGBImages, runs the RGB compute engine, and records the
// alternate rendition's descriptors into the gain map's metadata, the way
// a container-aware caller would after reading alt's own header.
//
// alt may be an image.Image or an *HDRImage; any other type is rejected.
func ComputeImage(base image.Image, basePrim ColorGamut, baseTF ColorTransfer, alt any, altPrim ColorGamut, altTF ColorTransfer, altICC []byte, gm *GainMap, opt *ComputeOptions, diag *Diagnostics) error {
	if base == nil || alt == nil || gm == nil {
		return invalidArgf("base, alternate and gain map must be non-nil")
	}

	baseRGB := imageToRGBImage(base)

	var altRGB *RGBImage
	var altDepth, altPlanes int
	switch a := alt.(type) {
	case *HDRImage:
		altRGB = hdrImageToRGBImage(a)
		altDepth = 32
		altPlanes = 3
	case image.Image:
		altRGB = imageToRGBImage(a)
		altDepth = 8
		altPlanes = 3
		if isGrayImage(a) {
			altPlanes = 1
		}
	default:
		return invalidArgf("alternate must be an image.Image or *HDRImage")
	}

	if err := ComputeRGB(baseRGB, basePrim, baseTF, nil, altRGB, altPrim, altTF, nil, gm, opt, diag); err != nil {
		return err
	}

	// ICC is not used by the math core, but a container-aware caller still
	// carries it through to the alt-side metadata for later round-tripping.
	gm.Metadata.AlternateICC = altICC
	gm.Metadata.AlternateColorPrimaries = altPrim
	gm.Metadata.AlternateTransferCharacteristics = altTF
	gm.Metadata.AlternateDepth = altDepth
	gm.Metadata.AlternatePlaneCount = altPlanes
	return nil
}

// rgbImageToStdImage packs an RGBImage's already-encoded samples into a
// 16-bit-per-channel image.Image, clamping to the representable [0,1]
// range and scaling [0,1] to [0,65535]. ApplyRGB already clamps its color
// channels to [0,1] outside the verbatim-copy fast path.
func rgbImageToStdImage(im *RGBImage) image.Image {
	out := image.NewNRGBA64(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			r, g, b, a := im.at(x, y)
			out.SetNRGBA64(x, y, color.NRGBA64{
				R: clampToU16(r*65535 + 0.5),
				G: clampToU16(g*65535 + 0.5),
				B: clampToU16(b*65535 + 0.5),
				A: clampToU16(a*65535 + 0.5),
			})
		}
	}
	return out
}
