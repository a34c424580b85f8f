package ultrahdr

// ChooseGainMapMathColorSpace picks whichever of basePrim/altPrim introduces
// the least negative excursion when the other set's unit colors are
// converted into it, per spec §4.4. Identical primaries return immediately;
// otherwise both conversion directions must be available or the choice fails
// with NotImplemented.
func ChooseGainMapMathColorSpace(basePrim, altPrim ColorGamut) (ColorGamut, error) {
	if basePrim == altPrim {
		return basePrim, nil
	}
	altToBase, err := primaryMatrix3x3(altPrim, basePrim)
	if err != nil {
		return 0, err
	}
	baseToAlt, err := primaryMatrix3x3(basePrim, altPrim)
	if err != nil {
		return 0, err
	}

	units := [3]rgb{{r: 1}, {g: 1}, {b: 1}}
	minOf := func(m [3][3]float32) float32 {
		min := float32(0)
		first := true
		for _, u := range units {
			out := applyMatrix3x3(m, u)
			for _, c := range []float32{out.r, out.g, out.b} {
				if first || c < min {
					min = c
					first = false
				}
			}
		}
		return min
	}

	mBase := minOf(altToBase)
	mAlt := minOf(baseToAlt)

	if mAlt <= mBase {
		return basePrim, nil
	}
	return altPrim, nil
}
