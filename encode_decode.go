package ultrahdr

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
)

// Encode creates a JPEG/R byte stream from an HDR image and SDR base image,
// by running ComputeRGB to synthesize the gain map and then assembling the
// dual-image JPEG container.
func Encode(hdr *HDRImage, sdr image.Image, opts *EncodeOptions) ([]byte, *GainMapMetadata, error) {
	if hdr == nil || sdr == nil {
		return nil, nil, errors.New("hdr and sdr must be provided")
	}
	b := sdr.Bounds()
	if b.Dx() != hdr.Width || b.Dy() != hdr.Height {
		return nil, nil, errors.New("hdr and sdr dimensions must match")
	}

	opt := applyEncodeDefaults(opts)
	if opt.GainMapScale < 1 {
		opt.GainMapScale = 1
	}
	if opt.Quality <= 0 {
		opt.Quality = defaultBaseQuality
	}
	if opt.GainMapQuality <= 0 {
		opt.GainMapQuality = defaultGainMapQuality
	}
	if opt.Gamma <= 0 {
		opt.Gamma = defaultGamma
	}
	if opt.HDRWhiteNits <= 0 {
		opt.HDRWhiteNits = defaultHDRWhiteNits
	}

	baseRGB := imageToRGBImage(sdr)
	altRGB := hdrImageToRGBImage(hdr)

	altHeadroom := float64(opt.HDRWhiteNits / sdrWhiteNits)
	if opt.TargetDisplayNits > 0 {
		altHeadroom = float64(opt.TargetDisplayNits / sdrWhiteNits)
	}

	mapW := hdr.Width / opt.GainMapScale
	mapH := hdr.Height / opt.GainMapScale
	if mapW < 1 {
		mapW = 1
	}
	if mapH < 1 {
		mapH = 1
	}

	altPrim := hdr.Gamut
	if altPrim == GamutUnspecified {
		altPrim = GamutBT2100
	}
	altTF := hdr.Transfer
	if altTF == TransferUnspecified {
		altTF = TransferLinear
	}

	gm := &GainMap{
		RequestedWidth:  mapW,
		RequestedHeight: mapH,
		SingleChannel:   !opt.UseMultiChannelGM,
		Gamma:           opt.Gamma,
	}
	computeOpt := &ComputeOptions{ManualBaseHdrHeadroom: 1.0, ManualAlternateHdrHeadroom: altHeadroom}
	var diag Diagnostics
	if err := ComputeRGB(baseRGB, GamutBT709, TransferSRGB, nil, altRGB, altPrim, altTF, nil, gm, computeOpt, &diag); err != nil {
		return nil, nil, err
	}

	gainmapImg, ok := gm.Image.(image.Image)
	if !ok {
		return nil, nil, errors.New("computed gain map has no image representation")
	}

	var baseBuf bytes.Buffer
	if err := jpeg.Encode(&baseBuf, sdr, &jpeg.Options{Quality: opt.Quality}); err != nil {
		return nil, nil, err
	}
	var gmBuf bytes.Buffer
	if err := jpeg.Encode(&gmBuf, gainmapImg, &jpeg.Options{Quality: opt.GainMapQuality}); err != nil {
		return nil, nil, err
	}

	container, err := assembleContainer(baseBuf.Bytes(), gmBuf.Bytes(), &gm.Metadata)
	if err != nil {
		return nil, nil, err
	}
	return container, &gm.Metadata, nil
}

// Decode parses a JPEG/R byte stream into an HDR image and SDR base image,
// by running ApplyRGB at the metadata's (or the caller-requested) display
// HDR headroom.
func Decode(data []byte, opts *DecodeOptions) (*HDRImage, image.Image, *GainMapMetadata, error) {
	if len(data) < 4 {
		return nil, nil, nil, errors.New("input too small")
	}
	ranges, err := scanJPEGs(data)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(ranges) < 2 {
		return nil, nil, nil, errors.New("gainmap image not found")
	}
	primary := data[ranges[0][0]:ranges[0][1]]
	gainmap := data[ranges[1][0]:ranges[1][1]]

	baseImg, err := jpeg.Decode(bytes.NewReader(primary))
	if err != nil {
		return nil, nil, nil, err
	}
	gainmapImg, err := jpeg.Decode(bytes.NewReader(gainmap))
	if err != nil {
		return nil, nil, nil, err
	}

	app1, app2, err := extractAppSegments(gainmap)
	if err != nil {
		return nil, nil, nil, err
	}
	iso := findISO(app2)
	xmp := findXMP(app1)

	var meta *GainMapMetadata
	if iso != nil {
		payload := iso[len(isoNamespace)+1:]
		m, err := decodeGainmapMetadataISO(payload)
		if err != nil {
			return nil, nil, nil, err
		}
		meta = m
	} else if xmp != nil {
		m, err := parseXMP(xmp)
		if err != nil {
			return nil, nil, nil, err
		}
		meta = m
	} else {
		return nil, nil, nil, errors.New("no gainmap metadata found")
	}

	headroom := meta.AlternateHdrHeadroom.ToFloat()
	if opts != nil && opts.MaxDisplayBoost > 0 {
		headroom = float64(opts.MaxDisplayBoost)
	}

	baseRGB := imageToRGBImage(baseImg)
	gm := &GainMap{Metadata: *meta, Image: gainmapImg}
	out := NewRGBImage(baseRGB.Width, baseRGB.Height)

	outPrim := meta.AlternateColorPrimaries
	if outPrim == GamutUnspecified {
		outPrim = GamutBT2100
	}
	wantCLLI := opts != nil && opts.WantCLLI
	var diag Diagnostics
	clli, err := ApplyRGB(baseRGB, GamutBT709, TransferSRGB, gm, headroom, outPrim, TransferLinear, out, wantCLLI, &diag)
	if err != nil {
		return nil, nil, nil, err
	}
	meta.CLLI = clli

	hdr := rgbImageToHDRImage(out, outPrim, TransferLinear)
	return hdr, baseImg, meta, nil
}

func applyEncodeDefaults(opts *EncodeOptions) EncodeOptions {
	if opts == nil {
		return EncodeOptions{
			Quality:           defaultBaseQuality,
			GainMapQuality:    defaultGainMapQuality,
			GainMapScale:      defaultGainMapScale,
			UseMultiChannelGM: false,
			Gamma:             defaultGamma,
			HDRWhiteNits:      defaultHDRWhiteNits,
			UseLuminance:      false,
		}
	}
	return *opts
}

// imageToRGBImage samples an arbitrary image.Image into an sRGB-encoded
// RGBImage, the packed pixel format ApplyRGB/ComputeRGB operate on.
func imageToRGBImage(img image.Image) *RGBImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewRGBImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.set(x, y, float32(r)/65535.0, float32(g)/65535.0, float32(bl)/65535.0, float32(a)/65535.0)
		}
	}
	return out
}

// hdrImageToRGBImage reinterprets a linear-light HDRImage as an RGBImage
// (alpha opaque); values are carried through unclamped since HDR samples may
// exceed 1.0.
func hdrImageToRGBImage(hdr *HDRImage) *RGBImage {
	out := NewRGBImage(hdr.Width, hdr.Height)
	for y := 0; y < hdr.Height; y++ {
		for x := 0; x < hdr.Width; x++ {
			idx := (y*hdr.Stride + x) * 3
			out.set(x, y, hdr.Pix[idx], hdr.Pix[idx+1], hdr.Pix[idx+2], 1)
		}
	}
	return out
}

func rgbImageToHDRImage(im *RGBImage, gamut ColorGamut, transfer ColorTransfer) *HDRImage {
	out := &HDRImage{Width: im.Width, Height: im.Height, Stride: im.Width, Pix: make([]float32, im.Width*im.Height*3), Gamut: gamut, Transfer: transfer}
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			r, g, b, _ := im.at(x, y)
			idx := (y*out.Stride + x) * 3
			out.Pix[idx], out.Pix[idx+1], out.Pix[idx+2] = r, g, b
		}
	}
	return out
}

// assembleContainer builds a JPEG/R container from scratch given only the
// two JPEGs and metadata, deriving the XMP/ISO segments via the xmp.go/
// gainmap_metadata_iso.go builders before delegating to
// assembleContainerWithSegments.
func assembleContainer(primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("metadata required")
	}
	secondaryXMP := buildGainmapXMP(meta)
	secondaryISO, err := buildIsoPayload(meta)
	if err != nil {
		return nil, err
	}
	secondaryImageSize := len(gainmapJPEG) + appSize(secondaryXMP) + appSize(secondaryISO)
	primaryXMP := buildPrimaryXMP(meta, secondaryImageSize)
	primaryISO := buildIsoVersionOnly()

	return assembleContainerWithSegments(primaryJPEG, gainmapJPEG, &MetadataSegments{
		PrimaryXMP:   primaryXMP,
		PrimaryISO:   primaryISO,
		SecondaryXMP: secondaryXMP,
		SecondaryISO: secondaryISO,
	})
}

func isGrayImage(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	default:
		return false
	}
}

