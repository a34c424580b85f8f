package ultrahdr

import "math"

// unsetHeadroom is the sentinel meaning "not configured" for the process-wide
// manual headroom scalars, per spec §5/§6.
const unsetHeadroom = -1.0

// Process-wide configuration read only by ComputeRGB/ComputeImage when no
// explicit ComputeOptions is supplied. Not synchronized: the host application
// is expected to set these once at startup, before any concurrent compute
// call. Prefer ComputeOptions in new code; these exist for parity with
// callers that rely on the global form (spec §9 design note).
var (
	manualBaseHdrHeadroom      = unsetHeadroom
	manualAlternateHdrHeadroom = unsetHeadroom
)

// SetManualHdrHeadrooms sets the process-wide base/alternate HDR headroom
// scalars consumed by ComputeRGB when called without explicit
// ComputeOptions. Pass a negative value to unset either.
func SetManualHdrHeadrooms(base, alternate float64) {
	manualBaseHdrHeadroom = base
	manualAlternateHdrHeadroom = alternate
}

// ComputeOptions carries the per-call configuration ComputeRGB needs. This is
// the preferred replacement for the process-wide globals (spec §9): pass it
// explicitly rather than relying on ambient state.
type ComputeOptions struct {
	// ManualBaseHdrHeadroom and ManualAlternateHdrHeadroom are the headroom
	// ratios (1.0 = SDR white, e.g. 4.0 for a 4x-brighter rendition) to
	// record into the output metadata. Both must be non-negative and
	// finite, or ComputeRGB returns InvalidArgument.
	ManualBaseHdrHeadroom      float64
	ManualAlternateHdrHeadroom float64
}

func resolveManualHeadrooms(opt *ComputeOptions) (base, alternate float64) {
	if opt != nil {
		return opt.ManualBaseHdrHeadroom, opt.ManualAlternateHdrHeadroom
	}
	return manualBaseHdrHeadroom, manualAlternateHdrHeadroom
}

func validHeadroomScalar(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
