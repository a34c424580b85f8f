package ultrahdr

// ColorGamut identifies a supported color gamut.
type ColorGamut int

const (
	GamutUnspecified ColorGamut = iota
	GamutBT709
	GamutDisplayP3
	GamutBT2100
	GamutAdobeRGB
)

// ColorTransfer identifies a supported transfer function.
type ColorTransfer int

const (
	TransferUnspecified ColorTransfer = iota
	TransferSRGB
	TransferLinear
	TransferPQ
	TransferHLG
)

// HDRImage stores a linear-light HDR image in RGB float32.
// Pixel values are expected to be relative to SDR white (1.0 = SDR white).
type HDRImage struct {
	Width  int
	Height int
	Stride int // pixels per row, in RGB triplets
	Pix    []float32
	Gamut  ColorGamut
	// Transfer describes how Pix values should be interpreted if not linear.
	// Encode passes it to ComputeRGB as the alternate's transfer;
	// TransferUnspecified is treated as linear.
	Transfer ColorTransfer
}

// GainMap is the metadata plus the opaque gain-map image it describes, per
// spec §3. Image holds the gain map pixels: compute writes *image.Gray for
// a single-channel (luma) map or *image.RGBA for a 3-channel map, and apply
// accepts anything whose At() exposes RGBA or gray samples.
//
// RequestedWidth/RequestedHeight/SingleChannel/Gamma are ComputeRGB's target
// format, set by the caller before the call (spec §4.6 precondition that
// map.image is "preconfigured with target dimensions/depth/format").
type GainMap struct {
	Metadata GainMapMetadata
	Image    any

	RequestedWidth  int
	RequestedHeight int
	SingleChannel   bool
	Gamma           float32
}

// MetadataSegments holds raw APP payloads for XMP/ISO blocks.
// These payloads include the namespace prefix and null terminator.
type MetadataSegments struct {
	PrimaryXMP   []byte
	PrimaryISO   []byte
	SecondaryXMP []byte
	SecondaryISO []byte
}

// EncodeOptions controls JPEG/R encoding.
type EncodeOptions struct {
	Quality           int     // base JPEG quality (0-100)
	GainMapQuality    int     // gainmap JPEG quality (0-100)
	GainMapScale      int     // downscale factor for gainmap (>=1)
	UseMultiChannelGM bool    // use RGB gainmap instead of luma
	Gamma             float32 // gainmap gamma
	HDRWhiteNits      float32 // reference HDR white in nits (default 1000)
	TargetDisplayNits float32 // optional, if >0 sets alternate headroom
	UseLuminance      bool    // not read by Encode; a single-channel gainmap is always computed from luminance
}

// DecodeOptions controls JPEG/R decoding.
type DecodeOptions struct {
	MaxDisplayBoost float32 // maximum display boost, >=1; if 0 uses metadata's alternate headroom
	WantCLLI        bool    // if true, Decode also returns CLLI statistics
}
