package ultrahdr

const (
	sdrWhiteNits = 203.0
	pqMaxNits    = 10000.0
	hlgMaxNits   = 1000.0
)

const (
	defaultGainMapScale   = 4
	defaultBaseQuality    = 95
	defaultGainMapQuality = 85
	defaultGamma          = 1.0
	defaultHDRWhiteNits   = 1000.0
)

const (
	jpegrVersion = "1.0"
)
