package ultrahdr

import (
	"bytes"
	"sort"
)

type colorGamut int

type colorTransfer int

const (
	colorGamutSRGB colorGamut = iota
	colorGamutDisplayP3
	colorGamutAdobeRGB
	colorGamutBT2100
)

const (
	colorTransferSRGB colorTransfer = iota
	colorTransferGamma22
)

type colorProfile struct {
	gamut    colorGamut
	transfer colorTransfer
}

func detectColorProfileFromICCProfile(profile []byte) colorProfile {
	if len(profile) == 0 {
		return colorProfile{gamut: colorGamutSRGB, transfer: colorTransferSRGB}
	}
	lower := bytes.ToLower(profile)
	// Simple heuristic: enough for common camera/jpeg workflows.
	if bytes.Contains(lower, []byte("display p3")) || bytes.Contains(lower, []byte("dci-p3")) {
		return colorProfile{gamut: colorGamutDisplayP3, transfer: colorTransferSRGB}
	}
	if bytes.Contains(lower, []byte("adobe rgb")) || bytes.Contains(lower, []byte("adobergb")) {
		return colorProfile{gamut: colorGamutAdobeRGB, transfer: colorTransferGamma22}
	}
	return colorProfile{gamut: colorGamutSRGB, transfer: colorTransferSRGB}
}

func collectICCProfile(icc [][]byte) []byte {
	type chunk struct {
		seq  int
		data []byte
	}
	chunks := make([]chunk, 0, len(icc))
	for _, p := range icc {
		// ICC APP2 payload: "ICC_PROFILE\0" + seq + total + profile bytes.
		if len(p) > len(iccSig)+2 && bytes.HasPrefix(p, iccSig) {
			chunks = append(chunks, chunk{seq: int(p[len(iccSig)]), data: append([]byte(nil), p[len(iccSig)+2:]...)})
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	total := 0
	for _, c := range chunks {
		total += len(c.data)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.data...)
	}
	return out
}

func convertLinearGamut(v rgb, from, to colorGamut) rgb {
	if from == to {
		return v
	}
	// Matrices are D65 linear RGB <-> XYZ.
	x, y, z := rgbToXYZ(v, from)
	return xyzToRGB(x, y, z, to)
}

func rgbToXYZ(v rgb, from colorGamut) (float32, float32, float32) {
	switch from {
	case colorGamutDisplayP3:
		return 0.48657095*v.r + 0.2656677*v.g + 0.19821729*v.b,
			0.22897457*v.r + 0.69173855*v.g + 0.07928691*v.b,
			0.04511338*v.g + 1.0439444*v.b
	case colorGamutAdobeRGB:
		return 0.5767309*v.r + 0.185554*v.g + 0.1881852*v.b,
			0.2973769*v.r + 0.6273491*v.g + 0.0752741*v.b,
			0.0270343*v.r + 0.0706872*v.g + 0.9911085*v.b
	case colorGamutBT2100:
		return 0.6369580*v.r + 0.1446169*v.g + 0.1688810*v.b,
			0.2627002*v.r + 0.6779981*v.g + 0.0593017*v.b,
			0.0000000*v.r + 0.0280727*v.g + 1.0609851*v.b
	default:
		return 0.4123908*v.r + 0.35758433*v.g + 0.1804808*v.b,
			0.212639*v.r + 0.71516865*v.g + 0.07219232*v.b,
			0.019330818*v.r + 0.11919478*v.g + 0.95053214*v.b
	}
}

func xyzToRGB(x, y, z float32, to colorGamut) rgb {
	switch to {
	case colorGamutDisplayP3:
		return rgb{
			r: 2.493497*x - 0.9313836*y - 0.4027108*z,
			g: -0.829489*x + 1.7626641*y + 0.023624685*z,
			b: 0.03584583*x - 0.07617239*y + 0.9568845*z,
		}
	case colorGamutAdobeRGB:
		return rgb{
			r: 2.041369*x - 0.5649464*y - 0.3446944*z,
			g: -0.969266*x + 1.8760108*y + 0.041556*z,
			b: 0.0134474*x - 0.1183897*y + 1.0154096*z,
		}
	case colorGamutBT2100:
		return rgb{
			r: 1.7166512*x - 0.3556708*y - 0.2533663*z,
			g: -0.6666844*x + 1.6164812*y + 0.0157685*z,
			b: 0.0176399*x - 0.0427706*y + 0.9421031*z,
		}
	default:
		return rgb{
			r: 3.24097*x - 1.5373832*y - 0.49861076*z,
			g: -0.96924365*x + 1.8759675*y + 0.041555058*z,
			b: 0.05563008*x - 0.20397696*y + 1.0569715*z,
		}
	}
}

// toInternalGamut bridges the exported ColorGamut enum (ISO box / XMP facing)
// to the internal colorGamut enum the RGB<->XYZ matrices are keyed on.
// GamutBT709 and GamutUnspecified both resolve to the sRGB/BT.709 primaries,
// which share a matrix.
func toInternalGamut(g ColorGamut) (colorGamut, error) {
	switch g {
	case GamutUnspecified, GamutBT709:
		return colorGamutSRGB, nil
	case GamutDisplayP3:
		return colorGamutDisplayP3, nil
	case GamutAdobeRGB:
		return colorGamutAdobeRGB, nil
	case GamutBT2100:
		return colorGamutBT2100, nil
	default:
		return 0, notImplementedf("unsupported color primaries %d", g)
	}
}

// yCoefficients returns the luma (Y) weighting triple for a primary set, used
// to derive a single-channel gain map from RGB per spec §4.6 step 5.
func yCoefficients(g ColorGamut) ([3]float32, error) {
	switch g {
	case GamutUnspecified, GamutBT709:
		return [3]float32{0.2126, 0.7152, 0.0722}, nil
	case GamutDisplayP3:
		return [3]float32{0.2290, 0.6917, 0.0793}, nil
	case GamutAdobeRGB:
		return [3]float32{0.2974, 0.6273, 0.0753}, nil
	case GamutBT2100:
		return [3]float32{0.2627, 0.6780, 0.0593}, nil
	default:
		return [3]float32{}, notImplementedf("unsupported color primaries %d", g)
	}
}

// primaryMatrix3x3 returns the 3x3 row-major matrix converting linear RGB in
// `from` primaries to linear RGB in `to` primaries, via the shared D65 XYZ
// intermediate. Returns NotImplemented for unsupported primaries.
func primaryMatrix3x3(from, to ColorGamut) (m [3][3]float32, err error) {
	fromI, err := toInternalGamut(from)
	if err != nil {
		return m, err
	}
	toI, err := toInternalGamut(to)
	if err != nil {
		return m, err
	}
	basis := [3]rgb{{r: 1}, {g: 1}, {b: 1}}
	for col, unit := range basis {
		out := convertLinearGamut(unit, fromI, toI)
		m[0][col] = out.r
		m[1][col] = out.g
		m[2][col] = out.b
	}
	return m, nil
}

func applyMatrix3x3(m [3][3]float32, v rgb) rgb {
	return rgb{
		r: m[0][0]*v.r + m[0][1]*v.g + m[0][2]*v.b,
		g: m[1][0]*v.r + m[1][1]*v.g + m[1][2]*v.b,
		b: m[2][0]*v.r + m[2][1]*v.g + m[2][2]*v.b,
	}
}
