package ultrahdr

import "bytes"

// SameGainMapMetadata reports whether a and b carry identical headrooms and
// per-channel min/max/gamma/offset rationals, compared as raw (n, d) pairs
// per spec §4.7. Used by container writers to deduplicate identical boxes.
func SameGainMapMetadata(a, b *GainMapMetadata) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.BaseHdrHeadroom != b.BaseHdrHeadroom || a.AlternateHdrHeadroom != b.AlternateHdrHeadroom {
		return false
	}
	for c := 0; c < 3; c++ {
		if a.GainMapMin[c] != b.GainMapMin[c] ||
			a.GainMapMax[c] != b.GainMapMax[c] ||
			a.GainMapGamma[c] != b.GainMapGamma[c] ||
			a.BaseOffset[c] != b.BaseOffset[c] ||
			a.AlternateOffset[c] != b.AlternateOffset[c] {
			return false
		}
	}
	return true
}

// SameGainMapAltMetadata reports whether a and b carry identical
// alternate-rendition descriptors: ICC bytes, primaries/transfer/matrix,
// YUV range, depth, plane count, and both CLLI fields.
func SameGainMapAltMetadata(a, b *GainMapMetadata) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !bytes.Equal(a.AlternateICC, b.AlternateICC) {
		return false
	}
	if a.AlternateColorPrimaries != b.AlternateColorPrimaries ||
		a.AlternateTransferCharacteristics != b.AlternateTransferCharacteristics ||
		a.AlternateMatrixCoefficients != b.AlternateMatrixCoefficients ||
		a.AlternateRange != b.AlternateRange ||
		a.AlternateDepth != b.AlternateDepth ||
		a.AlternatePlaneCount != b.AlternatePlaneCount {
		return false
	}
	switch {
	case a.CLLI == nil && b.CLLI == nil:
		return true
	case a.CLLI == nil || b.CLLI == nil:
		return false
	default:
		return *a.CLLI == *b.CLLI
	}
}
