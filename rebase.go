package ultrahdr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
)

// RebaseOptions controls gainmap rebase behavior.
type RebaseOptions struct {
	BaseQuality    int
	GainmapQuality int
}

// RebaseResult contains the rebased container and component JPEGs.
type RebaseResult struct {
	Container []byte
	Primary   []byte
	Gainmap   []byte
}

// RebaseUltraHDR replaces the primary SDR image while adjusting the gainmap
// to preserve the original HDR reconstruction as closely as possible.
func RebaseUltraHDR(data []byte, newSDR image.Image, opt *RebaseOptions) (*RebaseResult, error) {
	if newSDR == nil {
		return nil, errors.New("new SDR image is nil")
	}
	primaryJPEG, gainmapJPEG, meta, segs, err := SplitWithSegments(data)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	oldSDR, _, err := image.Decode(bytes.NewReader(primaryJPEG))
	if err != nil {
		return nil, err
	}
	gainmapImg, _, err := image.Decode(bytes.NewReader(gainmapJPEG))
	if err != nil {
		return nil, err
	}
	if oldSDR.Bounds().Dx() != newSDR.Bounds().Dx() || oldSDR.Bounds().Dy() != newSDR.Bounds().Dy() {
		return nil, errors.New("new SDR dimensions must match original")
	}

	gainmapOut, err := rebaseGainmap(oldSDR, newSDR, gainmapImg, meta)
	if err != nil {
		return nil, err
	}

	gainQ := defaultGainMapQuality
	baseQ := defaultBaseQuality
	if opt != nil {
		if opt.GainmapQuality > 0 {
			gainQ = opt.GainmapQuality
		}
		if opt.BaseQuality > 0 {
			baseQ = opt.BaseQuality
		}
	}
	gainmapJpeg, err := encodeWithQuality(gainmapOut, gainQ)
	if err != nil {
		return nil, err
	}

	primaryOut, err := encodeWithQuality(newSDR, baseQ)
	if err != nil {
		return nil, err
	}

	exif, icc, err := extractExifAndIcc(primaryOut)
	if err != nil {
		return nil, err
	}
	if len(exif) == 0 && len(icc) == 0 {
		exif, icc, err = extractExifAndIcc(primaryJPEG)
		if err != nil {
			return nil, err
		}
	}
	container, err := assembleContainerVipsLike(primaryOut, gainmapJpeg, exif, icc, segs.SecondaryXMP, segs.SecondaryISO)
	if err != nil {
		return nil, err
	}
	return &RebaseResult{
		Container: container,
		Primary:   primaryOut,
		Gainmap:   gainmapJpeg,
	}, nil
}

// RebaseUltraHDRFile reads an UltraHDR JPEG, rebases it on newSDRPath, and writes the output.
func RebaseUltraHDRFile(inPath, newSDRPath, outPath string, opt *RebaseOptions, primaryOut, gainmapOut string) error {
	data, err := os.ReadFile(filepath.Clean(inPath))
	if err != nil {
		return err
	}
	newSDRFile, err := os.Open(filepath.Clean(newSDRPath))
	if err != nil {
		return err
	}
	defer newSDRFile.Close()
	newSDR, _, err := image.Decode(newSDRFile)
	if err != nil {
		return err
	}
	res, err := RebaseUltraHDR(data, newSDR, opt)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(outPath), res.Container, 0o644); err != nil {
		return err
	}
	if primaryOut != "" {
		if err := os.WriteFile(filepath.Clean(primaryOut), res.Primary, 0o644); err != nil {
			return err
		}
	}
	if gainmapOut != "" {
		if err := os.WriteFile(filepath.Clean(gainmapOut), res.Gainmap, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// RebaseUltraHDRFromEXRFile builds a fresh JPEG/R container from a plain SDR
// JPEG and an OpenEXR file carrying its HDR rendition, via the ComputeRGB
// engine, and writes the result to outPath.
func RebaseUltraHDRFromEXRFile(sdrPath, exrPath, outPath string, opt *RebaseOptions, primaryOut, gainmapOut string) error {
	sdrData, err := os.ReadFile(filepath.Clean(sdrPath))
	if err != nil {
		return err
	}
	sdrImg, err := image.Decode(bytes.NewReader(sdrData))
	if err != nil {
		return err
	}
	exrData, err := os.ReadFile(filepath.Clean(exrPath))
	if err != nil {
		return err
	}
	hdr, err := DecodeEXR(exrData)
	if err != nil {
		return err
	}

	enc := &EncodeOptions{}
	if opt != nil {
		enc.Quality = opt.BaseQuality
		enc.GainMapQuality = opt.GainmapQuality
	}
	container, _, err := Encode(hdr, sdrImg, enc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(outPath), container, 0o644); err != nil {
		return err
	}
	if primaryOut != "" || gainmapOut != "" {
		sr, splitErr := Split(container)
		if splitErr != nil {
			return splitErr
		}
		if primaryOut != "" {
			if err := os.WriteFile(filepath.Clean(primaryOut), sr.PrimaryJPEG, 0o644); err != nil {
				return err
			}
		}
		if gainmapOut != "" {
			if err := os.WriteFile(filepath.Clean(gainmapOut), sr.GainmapJPEG, 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func rebaseGainmap(oldSDR, newSDR, gainmap image.Image, meta *GainMapMetadata) (image.Image, error) {
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	b := newSDR.Bounds()
	w, h := b.Dx(), b.Dy()
	gmBounds := gainmap.Bounds()
	gmW, gmH := gmBounds.Dx(), gmBounds.Dy()
	mapScaleX := float32(w) / float32(gmW)
	mapScaleY := float32(h) / float32(gmH)

	var gammaF, minF, maxF, baseOffF, altOffF [3]float32
	for c := 0; c < 3; c++ {
		gammaF[c] = float32(meta.GainMapGamma[c].ToFloat())
		minF[c] = float32(meta.GainMapMin[c].ToFloat())
		maxF[c] = float32(meta.GainMapMax[c].ToFloat())
		baseOffF[c] = float32(meta.BaseOffset[c].ToFloat())
		altOffF[c] = float32(meta.AlternateOffset[c].ToFloat())
	}

	mapCoords := func(x, y int) (int, int) {
		gx := int(float32(x)/mapScaleX + 0.5)
		gy := int(float32(y)/mapScaleY + 0.5)
		if gx < 0 {
			gx = 0
		}
		if gy < 0 {
			gy = 0
		}
		if gx >= gmW {
			gx = gmW - 1
		}
		if gy >= gmH {
			gy = gmH - 1
		}
		return gx, gy
	}

	if isGrayImage(gainmap) {
		out := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				oldRGB := sampleSDR(oldSDR, b.Min.X+x, b.Min.Y+y)
				newRGB := sampleSDR(newSDR, b.Min.X+x, b.Min.Y+y)
				gx, gy := mapCoords(x, y)

				gv := gainmapDecodeValue(grayAt(gainmap, gx, gy), gammaF[0])
				logv := lerp(minF[0], maxF[0], gv)
				gainFactor := exp2f(logv)
				hdr := rgb{
					r: (oldRGB.r+baseOffF[0])*gainFactor - altOffF[0],
					g: (oldRGB.g+baseOffF[0])*gainFactor - altOffF[0],
					b: (oldRGB.b+baseOffF[0])*gainFactor - altOffF[0],
				}
				hdrY := max3f(hdr.r, hdr.g, hdr.b)
				newY := max3f(newRGB.r, newRGB.g, newRGB.b)
				denom := newY + baseOffF[0]
				if denom <= 0 {
					denom = 1e-6
				}
				newGain := (hdrY + altOffF[0]) / denom
				newGV := gainFromFactor(newGain, minF[0], maxF[0], gammaF[0])
				out.SetGray(x, y, color.Gray{Y: newGV})
			}
		}
		return out, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			oldRGB := sampleSDR(oldSDR, b.Min.X+x, b.Min.Y+y)
			newRGB := sampleSDR(newSDR, b.Min.X+x, b.Min.Y+y)
			gx, gy := mapCoords(x, y)

			gr, gg, gb := rgbAt(gainmap, gx, gy)
			gain := rgb{
				r: gainmapDecodeValue(gr, gammaF[0]),
				g: gainmapDecodeValue(gg, gammaF[1]),
				b: gainmapDecodeValue(gb, gammaF[2]),
			}
			logBoostR := lerp(minF[0], maxF[0], gain.r)
			logBoostG := lerp(minF[1], maxF[1], gain.g)
			logBoostB := lerp(minF[2], maxF[2], gain.b)
			hdr := rgb{
				r: (oldRGB.r+baseOffF[0])*exp2f(logBoostR) - altOffF[0],
				g: (oldRGB.g+baseOffF[1])*exp2f(logBoostG) - altOffF[1],
				b: (oldRGB.b+baseOffF[2])*exp2f(logBoostB) - altOffF[2],
			}
			denomR := newRGB.r + baseOffF[0]
			denomG := newRGB.g + baseOffF[1]
			denomB := newRGB.b + baseOffF[2]
			if denomR <= 0 {
				denomR = 1e-6
			}
			if denomG <= 0 {
				denomG = 1e-6
			}
			if denomB <= 0 {
				denomB = 1e-6
			}
			newGainR := (hdr.r + altOffF[0]) / denomR
			newGainG := (hdr.g + altOffF[1]) / denomG
			newGainB := (hdr.b + altOffF[2]) / denomB
			out.SetRGBA(x, y, color.RGBA{
				R: gainFromFactor(newGainR, minF[0], maxF[0], gammaF[0]),
				G: gainFromFactor(newGainG, minF[1], maxF[1], gammaF[1]),
				B: gainFromFactor(newGainB, minF[2], maxF[2], gammaF[2]),
				A: 0xFF,
			})
		}
	}
	return out, nil
}

// gainFromFactor quantizes a linear gain factor back into the gain map's
// uint8 encoding, given the channel's log-space min/max and gamma.
func gainFromFactor(gainFactor, logMin, logMax, gamma float32) uint8 {
	logBoost := log2f(gainFactor)
	if logBoost < logMin {
		logBoost = logMin
	}
	if logBoost > logMax {
		logBoost = logMax
	}
	g := float32(0)
	if logMax != logMin {
		g = (logBoost - logMin) / (logMax - logMin)
	}
	g = clamp01(g)
	if gamma != 1 {
		g = float32(math.Pow(float64(g), float64(gamma)))
	}
	val := g*255.0 + 0.5
	if val < 0 {
		val = 0
	}
	if val > 255 {
		val = 255
	}
	return uint8(val)
}

func sampleSDR(img image.Image, x, y int) rgb {
	r, g, b, _ := img.At(x, y).RGBA()
	return rgb{r: float32(r) / 65535.0, g: float32(g) / 65535.0, b: float32(b) / 65535.0}
}

func grayAt(img image.Image, x, y int) uint8 {
	if gray, ok := img.(*image.Gray); ok {
		return gray.GrayAt(x, y).Y
	}
	y16 := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
	return uint8(y16.Y >> 8)
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}
