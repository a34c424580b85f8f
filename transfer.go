package ultrahdr

import "math"

// gammaToLinear and linearToGamma are the transfer-function service the core
// treats as external (spec §6): encoded sample in [0,1] to/from scene-linear
// value, keyed by ColorTransfer. PQ and HLG follow the BT.2100 reference
// formulas; sRGB reuses the existing OETF inverse in util.go.

const (
	pqM1 = 2610.0 / 16384.0
	pqM2 = 2523.0 / 4096.0 * 128.0
	pqC1 = 3424.0 / 4096.0
	pqC2 = 2413.0 / 4096.0 * 32.0
	pqC3 = 2392.0 / 4096.0 * 32.0
)

func gammaToLinear(v float32, tf ColorTransfer) (float32, error) {
	switch tf {
	case TransferLinear:
		return v, nil
	case TransferSRGB, TransferUnspecified:
		return srgbInvOetf(v), nil
	case TransferPQ:
		return pqToLinear(v), nil
	case TransferHLG:
		return hlgToLinear(v), nil
	default:
		return 0, notImplementedf("unsupported transfer characteristic %d", tf)
	}
}

func linearToGamma(v float32, tf ColorTransfer) (float32, error) {
	switch tf {
	case TransferLinear:
		return v, nil
	case TransferSRGB, TransferUnspecified:
		return srgbOetf(v), nil
	case TransferPQ:
		return linearToPQ(v), nil
	case TransferHLG:
		return linearToHLG(v), nil
	default:
		return 0, notImplementedf("unsupported transfer characteristic %d", tf)
	}
}

func srgbOetf(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return float32(1.055*math.Pow(float64(v), 1.0/2.4) - 0.055)
}

// pqToLinear maps a PQ-encoded sample to linear, normalized so 1.0 linear
// is 203 nits of SDR white (spec's CLLI white point); PQ full scale (10000
// nits) maps to 10000/203.
func pqToLinear(v float32) float32 {
	if v < 0 {
		v = 0
	}
	vd := float64(v)
	num := math.Max(math.Pow(vd, 1.0/pqM2)-pqC1, 0)
	den := pqC2 - pqC3*math.Pow(vd, 1.0/pqM2)
	linear := math.Pow(num/den, 1.0/pqM1)
	return float32(linear * 10000.0 / 203.0)
}

func linearToPQ(v float32) float32 {
	if v < 0 {
		v = 0
	}
	vd := float64(v) * 203.0 / 10000.0
	num := pqC1 + pqC2*math.Pow(vd, pqM1)
	den := 1 + pqC3*math.Pow(vd, pqM1)
	return float32(math.Pow(num/den, pqM2))
}

const (
	hlgA = 0.17883277
	hlgB = 1 - 4*hlgA
)

func hlgToLinear(v float32) float32 {
	vd := float64(v)
	c := 0.5 - hlgA*math.Log(4*hlgA)
	var scene float64
	if vd <= 0.5 {
		scene = vd * vd / 3.0
	} else {
		scene = (math.Exp((vd-c)/hlgA) + hlgB) / 12.0
	}
	return float32(scene)
}

func linearToHLG(v float32) float32 {
	vd := float64(v)
	if vd < 0 {
		vd = 0
	}
	c := 0.5 - hlgA*math.Log(4*hlgA)
	var encoded float64
	if vd <= 1.0/12.0 {
		encoded = math.Sqrt(3 * vd)
	} else {
		encoded = hlgA*math.Log(12*vd-hlgB) + c
	}
	return float32(encoded)
}
