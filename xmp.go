package ultrahdr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reVersion       = regexp.MustCompile(`hdrgm:Version="([^"]+)"`)
	reGainMapMin    = regexp.MustCompile(`hdrgm:GainMapMin="([^"]+)"`)
	reGainMapMax    = regexp.MustCompile(`hdrgm:GainMapMax="([^"]+)"`)
	reGamma         = regexp.MustCompile(`hdrgm:Gamma="([^"]+)"`)
	reOffsetSDR     = regexp.MustCompile(`hdrgm:OffsetSDR="([^"]+)"`)
	reOffsetHDR     = regexp.MustCompile(`hdrgm:OffsetHDR="([^"]+)"`)
	reHDRCapMin     = regexp.MustCompile(`hdrgm:HDRCapacityMin="([^"]+)"`)
	reHDRCapMax     = regexp.MustCompile(`hdrgm:HDRCapacityMax="([^"]+)"`)
	reBaseIsHDR     = regexp.MustCompile(`hdrgm:BaseRenditionIsHDR="([^"]+)"`)
	reGainMapMinSeq = regexp.MustCompile(`(?s)<hdrgm:GainMapMin>.*?<rdf:Seq>(.*?)</rdf:Seq>.*?</hdrgm:GainMapMin>`)
	reGainMapMaxSeq = regexp.MustCompile(`(?s)<hdrgm:GainMapMax>.*?<rdf:Seq>(.*?)</rdf:Seq>.*?</hdrgm:GainMapMax>`)
	reGammaSeq      = regexp.MustCompile(`(?s)<hdrgm:Gamma>.*?<rdf:Seq>(.*?)</rdf:Seq>.*?</hdrgm:Gamma>`)
	reRdfLi         = regexp.MustCompile(`(?s)<rdf:li>([^<]+)</rdf:li>`)
)

// parseXMP decodes an hdrgm: XMP payload into a GainMapMetadata.
// hdrgm:GainMapMin/Max are already log2-space, matching GainMapMetadata's own
// fields, so they're encoded as-is via SignedFractionFromFloat.
// hdrgm:HDRCapacityMin/Max are log2-space in the XMP namespace but
// GainMapMetadata's Base/AlternateHdrHeadroom are linear ratios, so those
// still go through exp2f/log2f at the XMP boundary.
func parseXMP(app1 []byte) (*GainMapMetadata, error) {
	if len(app1) < len(xmpNamespace)+2 {
		return nil, errors.New("xmp block too small")
	}
	if !strings.HasPrefix(string(app1), xmpNamespace+"\x00") {
		return nil, errors.New("xmp namespace mismatch")
	}
	xml := string(app1[len(xmpNamespace)+1:])

	meta := NewGainMapMetadata()

	getStr := func(re *regexp.Regexp) (string, bool) {
		m := re.FindStringSubmatch(xml)
		if len(m) != 2 {
			return "", false
		}
		return m[1], true
	}
	getFloat := func(re *regexp.Regexp) (float32, bool, error) {
		str, ok := getStr(re)
		if !ok {
			return 0, false, nil
		}
		v, err := strconv.ParseFloat(str, 32)
		if err != nil {
			return 0, true, err
		}
		return float32(v), true, nil
	}
	getSeqFloats := func(re *regexp.Regexp) ([]float32, bool, error) {
		m := re.FindStringSubmatch(xml)
		if len(m) != 2 {
			return nil, false, nil
		}
		items := reRdfLi.FindAllStringSubmatch(m[1], -1)
		if len(items) == 0 {
			return nil, false, nil
		}
		out := make([]float32, 0, len(items))
		for _, it := range items {
			if len(it) != 2 {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(it[1]), 32)
			if err != nil {
				return nil, true, err
			}
			out = append(out, float32(v))
		}
		if len(out) == 0 {
			return nil, false, nil
		}
		return out, true, nil
	}

	applySeq := func(dst *[3]float32, vals []float32) {
		if len(vals) == 0 {
			return
		}
		if len(vals) == 1 {
			dst[0], dst[1], dst[2] = vals[0], vals[0], vals[0]
			return
		}
		dst[0] = vals[0]
		if len(vals) > 1 {
			dst[1] = vals[1]
		}
		if len(vals) > 2 {
			dst[2] = vals[2]
		}
	}

	if _, ok := getStr(reVersion); !ok {
		return nil, errors.New("xmp missing version")
	}

	var maxBoost, minBoost, gamma [3]float32
	maxBoost[0], minBoost[0], gamma[0] = 1, 1, 1

	if v, ok, err := getFloat(reGainMapMax); err != nil {
		return nil, err
	} else if ok {
		maxBoost[0] = v
		maxBoost[1], maxBoost[2] = maxBoost[0], maxBoost[0]
	} else if seq, ok, err := getSeqFloats(reGainMapMaxSeq); err != nil {
		return nil, err
	} else if ok {
		applySeq(&maxBoost, seq)
	} else {
		return nil, errors.New("xmp missing GainMapMax")
	}

	var baseHeadroom, altHeadroom float32 = 1, 1
	if v, ok, err := getFloat(reHDRCapMax); err != nil {
		return nil, err
	} else if ok {
		altHeadroom = exp2f(v)
	} else {
		return nil, errors.New("xmp missing HDRCapacityMax")
	}

	if v, ok, err := getFloat(reGainMapMin); err != nil {
		return nil, err
	} else if ok {
		minBoost[0] = v
		minBoost[1], minBoost[2] = minBoost[0], minBoost[0]
	} else if seq, ok, err := getSeqFloats(reGainMapMinSeq); err != nil {
		return nil, err
	} else if ok {
		applySeq(&minBoost, seq)
	}
	if v, ok, err := getFloat(reGamma); err != nil {
		return nil, err
	} else if ok {
		gamma[0], gamma[1], gamma[2] = v, v, v
	} else if seq, ok, err := getSeqFloats(reGammaSeq); err != nil {
		return nil, err
	} else if ok {
		applySeq(&gamma, seq)
	}

	var offsetSDR, offsetHDR float32 = 1.0 / 64.0, 1.0 / 64.0
	if v, ok, err := getFloat(reOffsetSDR); err != nil {
		return nil, err
	} else if ok {
		offsetSDR = v
	}
	if v, ok, err := getFloat(reOffsetHDR); err != nil {
		return nil, err
	} else if ok {
		offsetHDR = v
	}
	if v, ok, err := getFloat(reHDRCapMin); err != nil {
		return nil, err
	} else if ok {
		baseHeadroom = exp2f(v)
	}
	if v, ok := getStr(reBaseIsHDR); ok {
		if v == "True" {
			return nil, errors.New("base rendition HDR not supported")
		}
	}

	for i := 0; i < 3; i++ {
		if minBoost[i] == 0 {
			minBoost[i] = minBoost[0]
		}
		if maxBoost[i] == 0 {
			maxBoost[i] = maxBoost[0]
		}
		if gamma[i] == 0 {
			gamma[i] = gamma[0]
		}
		var err error
		if meta.GainMapMin[i], err = SignedFractionFromFloat(float64(minBoost[i])); err != nil {
			return nil, err
		}
		if meta.GainMapMax[i], err = SignedFractionFromFloat(float64(maxBoost[i])); err != nil {
			return nil, err
		}
		if meta.GainMapGamma[i], err = UnsignedFractionFromFloat(float64(gamma[i])); err != nil {
			return nil, err
		}
		if meta.BaseOffset[i], err = SignedFractionFromFloat(float64(offsetSDR)); err != nil {
			return nil, err
		}
		if meta.AlternateOffset[i], err = SignedFractionFromFloat(float64(offsetHDR)); err != nil {
			return nil, err
		}
	}
	var err error
	if meta.BaseHdrHeadroom, err = UnsignedFractionFromFloat(float64(baseHeadroom)); err != nil {
		return nil, err
	}
	if meta.AlternateHdrHeadroom, err = UnsignedFractionFromFloat(float64(altHeadroom)); err != nil {
		return nil, err
	}
	return meta, nil
}

func buildGainmapXMP(meta *GainMapMetadata) []byte {
	if meta == nil {
		return nil
	}
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'g', 6, 32)
	}
	xml := fmt.Sprintf(
		`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"><rdf:Description xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/" hdrgm:Version="%s" hdrgm:GainMapMin="%s" hdrgm:GainMapMax="%s" hdrgm:Gamma="%s" hdrgm:OffsetSDR="%s" hdrgm:OffsetHDR="%s" hdrgm:HDRCapacityMin="%s" hdrgm:HDRCapacityMax="%s" hdrgm:BaseRenditionIsHDR="False"/></rdf:RDF></x:xmpmeta>`,
		jpegrVersion,
		format(meta.GainMapMin[0].ToFloat()),
		format(meta.GainMapMax[0].ToFloat()),
		format(meta.GainMapGamma[0].ToFloat()),
		format(meta.BaseOffset[0].ToFloat()),
		format(meta.AlternateOffset[0].ToFloat()),
		format(float64(log2f(float32(meta.BaseHdrHeadroom.ToFloat())))),
		format(float64(log2f(float32(meta.AlternateHdrHeadroom.ToFloat())))),
	)
	out := make([]byte, 0, len(xmpNamespace)+1+len(xml))
	out = append(out, []byte(xmpNamespace)...)
	out = append(out, 0)
	out = append(out, xml...)
	return out
}

func buildPrimaryXMP(meta *GainMapMetadata, secondaryImageSize int) []byte {
	xml := fmt.Sprintf(
		`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"><rdf:Description xmlns:Container="http://ns.google.com/photos/1.0/container/" xmlns:Item="http://ns.google.com/photos/1.0/container/item/" xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/" hdrgm:Version="%s"><Container:Directory><rdf:Seq><rdf:li rdf:parseType="Resource"><Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/></rdf:li><rdf:li rdf:parseType="Resource"><Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="%d"/></rdf:li></rdf:Seq></Container:Directory></rdf:Description></rdf:RDF></x:xmpmeta>`,
		jpegrVersion,
		secondaryImageSize,
	)
	out := make([]byte, 0, len(xmpNamespace)+1+len(xml))
	out = append(out, []byte(xmpNamespace)...)
	out = append(out, 0)
	out = append(out, xml...)
	return out
}
