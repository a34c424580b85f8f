package ultrahdr

// CalculateWeight maps a display HDR headroom to a signed blend weight in
// [-1, 1], per spec §4.2. If the base and alternate headrooms are equal, the
// ratio is undefined by contract and the weight is 0 (no application).
func CalculateWeight(hdrHeadroom float64, m *GainMapMetadata) float64 {
	b := m.BaseHdrHeadroom.ToFloat()
	a := m.AlternateHdrHeadroom.ToFloat()
	if b == a {
		return 0
	}
	w := (hdrHeadroom - b) / (a - b)
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	if a < b {
		return -w
	}
	return w
}
