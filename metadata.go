package ultrahdr

import "fmt"

// GainMapMetadata is the per-channel rational metadata record described by
// the ISO 21496-1 gain map box: log2-space min/max and gamma per channel,
// base/alternate offsets, the two HDR headrooms, and the alternate
// rendition's color descriptors.
type GainMapMetadata struct {
	GainMapMin      [3]SignedFraction
	GainMapMax      [3]SignedFraction
	GainMapGamma    [3]UnsignedFraction
	BaseOffset      [3]SignedFraction
	AlternateOffset [3]SignedFraction

	BaseHdrHeadroom      UnsignedFraction
	AlternateHdrHeadroom UnsignedFraction

	UseBaseColorSpace bool

	// Alternate-rendition descriptors, carried through from the alternate
	// image at compute time and consumed by ApplyImage/Decode.
	AlternateColorPrimaries          ColorGamut
	AlternateTransferCharacteristics ColorTransfer
	AlternateMatrixCoefficients      int
	AlternateRange                   int
	AlternateDepth                   int
	AlternatePlaneCount              int
	AlternateICC                     []byte
	CLLI                             *CLLI
}

// CLLI is content-light-level information: the maximum single-pixel and
// maximum frame-average luminance, in nits.
type CLLI struct {
	MaxCLL  uint16
	MaxPALL uint16
}

// NewGainMapMetadata returns metadata populated with the encoding defaults:
// a constant gain map (min=max=1 in log2 space, i.e. a uniform 2x boost at
// full weight; gamma=1), quantization offsets of 1/64, an
// SDR base headroom, an HDR-by-default alternate headroom, and base-color-space
// math.
func NewGainMapMetadata() *GainMapMetadata {
	m := &GainMapMetadata{}
	for c := 0; c < 3; c++ {
		m.GainMapMin[c] = SignedFraction{N: 1, D: 1}
		m.GainMapMax[c] = SignedFraction{N: 1, D: 1}
		m.GainMapGamma[c] = UnsignedFraction{N: 1, D: 1}
		m.BaseOffset[c] = SignedFraction{N: 1, D: 64}
		m.AlternateOffset[c] = SignedFraction{N: 1, D: 64}
	}
	m.BaseHdrHeadroom = UnsignedFraction{N: 0, D: 1}
	m.AlternateHdrHeadroom = UnsignedFraction{N: 1, D: 1}
	m.UseBaseColorSpace = true
	return m
}

// ValidateMetadata enforces the structural invariants of §4.1: every
// denominator is non-zero, every gamma numerator is non-zero, and for each
// channel max >= min compared as exact rationals.
func ValidateMetadata(m *GainMapMetadata) error {
	if m == nil {
		return &EngineError{Kind: InvalidArgument, Msg: "gain map metadata is nil"}
	}
	if m.BaseHdrHeadroom.D == 0 {
		return &EngineError{Kind: InvalidArgument, Msg: "base HDR headroom has zero denominator"}
	}
	if m.AlternateHdrHeadroom.D == 0 {
		return &EngineError{Kind: InvalidArgument, Msg: "alternate HDR headroom has zero denominator"}
	}
	for c := 0; c < 3; c++ {
		if m.GainMapMin[c].D == 0 {
			return &EngineError{Kind: InvalidArgument, Msg: fmt.Sprintf("channel %d gain map min has zero denominator", c)}
		}
		if m.GainMapMax[c].D == 0 {
			return &EngineError{Kind: InvalidArgument, Msg: fmt.Sprintf("channel %d gain map max has zero denominator", c)}
		}
		if m.GainMapGamma[c].D == 0 {
			return &EngineError{Kind: InvalidArgument, Msg: fmt.Sprintf("channel %d gain map gamma has zero denominator", c)}
		}
		if m.GainMapGamma[c].N == 0 {
			return &EngineError{Kind: InvalidArgument, Msg: fmt.Sprintf("channel %d gain map gamma numerator is zero", c)}
		}
		if m.BaseOffset[c].D == 0 {
			return &EngineError{Kind: InvalidArgument, Msg: fmt.Sprintf("channel %d base offset has zero denominator", c)}
		}
		if m.AlternateOffset[c].D == 0 {
			return &EngineError{Kind: InvalidArgument, Msg: fmt.Sprintf("channel %d alternate offset has zero denominator", c)}
		}
		if signedLess(m.GainMapMax[c], m.GainMapMin[c]) {
			return &EngineError{Kind: InvalidArgument, Msg: fmt.Sprintf("channel %d gain map max is below min", c)}
		}
	}
	return nil
}

// metaAllChannelsIdentical reports whether a metadata record's per-channel
// fields are all equal, the condition under which it can be serialized as a
// single-channel (luma-only) ISO box.
func metaAllChannelsIdentical(m *GainMapMetadata) bool {
	if m == nil {
		return true
	}
	for i := 1; i < 3; i++ {
		if m.GainMapMin[0] != m.GainMapMin[i] ||
			m.GainMapMax[0] != m.GainMapMax[i] ||
			m.GainMapGamma[0] != m.GainMapGamma[i] ||
			m.BaseOffset[0] != m.BaseOffset[i] ||
			m.AlternateOffset[0] != m.AlternateOffset[i] {
			return false
		}
	}
	return true
}
