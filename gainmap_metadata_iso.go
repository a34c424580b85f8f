package ultrahdr

import (
	"encoding/binary"
	"errors"
)

const (
	isoIsMultiChannelMask = 1 << 7
	isoUseBaseColorMask   = 1 << 6
)

// gainmapMetadataFrac is the ISO 21496-1 gain map metadata box's wire shape:
// every field is an explicit numerator/denominator pair, with an optional
// common-denominator encoding when all fractions in the box share one.
type gainmapMetadataFrac struct {
	GainMapMinN       [3]int32
	GainMapMinD       [3]uint32
	GainMapMaxN       [3]int32
	GainMapMaxD       [3]uint32
	GainMapGammaN     [3]uint32
	GainMapGammaD     [3]uint32
	BaseOffsetN       [3]int32
	BaseOffsetD       [3]uint32
	AltOffsetN        [3]int32
	AltOffsetD        [3]uint32
	BaseHdrHeadroomN  uint32
	BaseHdrHeadroomD  uint32
	AltHdrHeadroomN   uint32
	AltHdrHeadroomD   uint32
	BackwardDirection bool
	UseBaseColorSpace bool
}

func decodeGainmapMetadataISO(data []byte) (*GainMapMetadata, error) {
	var frac gainmapMetadataFrac
	if err := frac.decode(data); err != nil {
		return nil, err
	}
	return fracToMetadata(&frac), nil
}

func encodeGainmapMetadataISO(meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	frac := metadataToFrac(meta)
	return frac.encode()
}

func buildIsoPayload(meta *GainMapMetadata) ([]byte, error) {
	encoded, err := encodeGainmapMetadataISO(meta)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(isoNamespace)+1+len(encoded))
	payload = append(payload, []byte(isoNamespace)...)
	payload = append(payload, 0)
	payload = append(payload, encoded...)
	return payload, nil
}

func (m *gainmapMetadataFrac) decode(in []byte) error {
	pos := 0
	readU16 := func() (uint16, error) {
		if pos+2 > len(in) {
			return 0, errors.New("iso metadata truncated")
		}
		v := binary.BigEndian.Uint16(in[pos:])
		pos += 2
		return v, nil
	}
	readU32 := func() (uint32, error) {
		if pos+4 > len(in) {
			return 0, errors.New("iso metadata truncated")
		}
		v := binary.BigEndian.Uint32(in[pos:])
		pos += 4
		return v, nil
	}
	readS32 := func() (int32, error) {
		v, err := readU32()
		return int32(v), err
	}
	readU8 := func() (uint8, error) {
		if pos+1 > len(in) {
			return 0, errors.New("iso metadata truncated")
		}
		v := in[pos]
		pos++
		return v, nil
	}

	minVer, err := readU16()
	if err != nil {
		return err
	}
	if minVer != 0 {
		return errors.New("unsupported iso min_version")
	}
	if _, err = readU16(); err != nil {
		return err
	}

	flags, err := readU8()
	if err != nil {
		return err
	}
	channelCount := uint8(1)
	if (flags & isoIsMultiChannelMask) != 0 {
		channelCount = 3
	}
	m.UseBaseColorSpace = (flags & isoUseBaseColorMask) != 0
	m.BackwardDirection = (flags & 4) != 0
	useCommon := (flags & 8) != 0

	if useCommon {
		common, err := readU32()
		if err != nil {
			return err
		}
		m.BaseHdrHeadroomD = common
		m.AltHdrHeadroomD = common
		m.BaseHdrHeadroomN, err = readU32()
		if err != nil {
			return err
		}
		m.AltHdrHeadroomN, err = readU32()
		if err != nil {
			return err
		}
		for c := 0; c < int(channelCount); c++ {
			if m.GainMapMinN[c], err = readS32(); err != nil {
				return err
			}
			m.GainMapMinD[c] = common
			if m.GainMapMaxN[c], err = readS32(); err != nil {
				return err
			}
			m.GainMapMaxD[c] = common
			if m.GainMapGammaN[c], err = readU32(); err != nil {
				return err
			}
			m.GainMapGammaD[c] = common
			if m.BaseOffsetN[c], err = readS32(); err != nil {
				return err
			}
			m.BaseOffsetD[c] = common
			if m.AltOffsetN[c], err = readS32(); err != nil {
				return err
			}
			m.AltOffsetD[c] = common
		}
		m.broadcastSingleChannel(channelCount)
		return nil
	}

	if m.BaseHdrHeadroomN, err = readU32(); err != nil {
		return err
	}
	if m.BaseHdrHeadroomD, err = readU32(); err != nil {
		return err
	}
	if m.AltHdrHeadroomN, err = readU32(); err != nil {
		return err
	}
	if m.AltHdrHeadroomD, err = readU32(); err != nil {
		return err
	}
	for c := 0; c < int(channelCount); c++ {
		if m.GainMapMinN[c], err = readS32(); err != nil {
			return err
		}
		if m.GainMapMinD[c], err = readU32(); err != nil {
			return err
		}
		if m.GainMapMaxN[c], err = readS32(); err != nil {
			return err
		}
		if m.GainMapMaxD[c], err = readU32(); err != nil {
			return err
		}
		if m.GainMapGammaN[c], err = readU32(); err != nil {
			return err
		}
		if m.GainMapGammaD[c], err = readU32(); err != nil {
			return err
		}
		if m.BaseOffsetN[c], err = readS32(); err != nil {
			return err
		}
		if m.BaseOffsetD[c], err = readU32(); err != nil {
			return err
		}
		if m.AltOffsetN[c], err = readS32(); err != nil {
			return err
		}
		if m.AltOffsetD[c], err = readU32(); err != nil {
			return err
		}
	}
	m.broadcastSingleChannel(channelCount)
	return nil
}

// broadcastSingleChannel copies channel 0 into channels 1/2 when the box
// carried only one channel, so the in-memory metadata always has all three.
func (m *gainmapMetadataFrac) broadcastSingleChannel(channelCount uint8) {
	if channelCount != 1 {
		return
	}
	for _, c := range []int{1, 2} {
		m.GainMapMinN[c], m.GainMapMinD[c] = m.GainMapMinN[0], m.GainMapMinD[0]
		m.GainMapMaxN[c], m.GainMapMaxD[c] = m.GainMapMaxN[0], m.GainMapMaxD[0]
		m.GainMapGammaN[c], m.GainMapGammaD[c] = m.GainMapGammaN[0], m.GainMapGammaD[0]
		m.BaseOffsetN[c], m.BaseOffsetD[c] = m.BaseOffsetN[0], m.BaseOffsetD[0]
		m.AltOffsetN[c], m.AltOffsetD[c] = m.AltOffsetN[0], m.AltOffsetD[0]
	}
}

func (m *gainmapMetadataFrac) encode() ([]byte, error) {
	const minVersion uint16 = 0
	const writerVersion uint16 = 0

	channelCount := uint8(3)
	if m.allChannelsIdentical() {
		channelCount = 1
	}

	flags := uint8(0)
	if channelCount == 3 {
		flags |= isoIsMultiChannelMask
	}
	if m.UseBaseColorSpace {
		flags |= isoUseBaseColorMask
	}
	if m.BackwardDirection {
		flags |= 4
	}

	denom := m.BaseHdrHeadroomD
	useCommon := m.AltHdrHeadroomD == denom
	for c := 0; c < int(channelCount); c++ {
		if m.GainMapMinD[c] != denom || m.GainMapMaxD[c] != denom || m.GainMapGammaD[c] != denom ||
			m.BaseOffsetD[c] != denom || m.AltOffsetD[c] != denom {
			useCommon = false
		}
	}
	if useCommon {
		flags |= 8
	}

	out := make([]byte, 0, 128)
	writeU16 := func(v uint16) {
		out = append(out, byte(v>>8), byte(v))
	}
	writeU32 := func(v uint32) {
		out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	writeS32 := func(v int32) {
		writeU32(uint32(v))
	}
	writeU8 := func(v uint8) {
		out = append(out, v)
	}

	writeU16(minVersion)
	writeU16(writerVersion)
	writeU8(flags)

	if useCommon {
		writeU32(denom)
		writeU32(m.BaseHdrHeadroomN)
		writeU32(m.AltHdrHeadroomN)
		for c := 0; c < int(channelCount); c++ {
			writeS32(m.GainMapMinN[c])
			writeS32(m.GainMapMaxN[c])
			writeU32(m.GainMapGammaN[c])
			writeS32(m.BaseOffsetN[c])
			writeS32(m.AltOffsetN[c])
		}
		return out, nil
	}

	writeU32(m.BaseHdrHeadroomN)
	writeU32(m.BaseHdrHeadroomD)
	writeU32(m.AltHdrHeadroomN)
	writeU32(m.AltHdrHeadroomD)
	for c := 0; c < int(channelCount); c++ {
		writeS32(m.GainMapMinN[c])
		writeU32(m.GainMapMinD[c])
		writeS32(m.GainMapMaxN[c])
		writeU32(m.GainMapMaxD[c])
		writeU32(m.GainMapGammaN[c])
		writeU32(m.GainMapGammaD[c])
		writeS32(m.BaseOffsetN[c])
		writeU32(m.BaseOffsetD[c])
		writeS32(m.AltOffsetN[c])
		writeU32(m.AltOffsetD[c])
	}
	return out, nil
}

// fracToMetadata copies the wire fractions straight into the in-memory
// rational GainMapMetadata: no float round-trip, since both sides are
// already numerator/denominator pairs.
func fracToMetadata(from *gainmapMetadataFrac) *GainMapMetadata {
	to := &GainMapMetadata{UseBaseColorSpace: from.UseBaseColorSpace}
	for i := 0; i < 3; i++ {
		to.GainMapMin[i] = SignedFraction{N: from.GainMapMinN[i], D: from.GainMapMinD[i]}
		to.GainMapMax[i] = SignedFraction{N: from.GainMapMaxN[i], D: from.GainMapMaxD[i]}
		to.GainMapGamma[i] = UnsignedFraction{N: from.GainMapGammaN[i], D: from.GainMapGammaD[i]}
		to.BaseOffset[i] = SignedFraction{N: from.BaseOffsetN[i], D: from.BaseOffsetD[i]}
		to.AlternateOffset[i] = SignedFraction{N: from.AltOffsetN[i], D: from.AltOffsetD[i]}
	}
	to.BaseHdrHeadroom = UnsignedFraction{N: from.BaseHdrHeadroomN, D: from.BaseHdrHeadroomD}
	to.AlternateHdrHeadroom = UnsignedFraction{N: from.AltHdrHeadroomN, D: from.AltHdrHeadroomD}
	return to
}

func metadataToFrac(from *GainMapMetadata) *gainmapMetadataFrac {
	to := &gainmapMetadataFrac{UseBaseColorSpace: from.UseBaseColorSpace}
	for i := 0; i < 3; i++ {
		to.GainMapMinN[i], to.GainMapMinD[i] = from.GainMapMin[i].N, from.GainMapMin[i].D
		to.GainMapMaxN[i], to.GainMapMaxD[i] = from.GainMapMax[i].N, from.GainMapMax[i].D
		to.GainMapGammaN[i], to.GainMapGammaD[i] = from.GainMapGamma[i].N, from.GainMapGamma[i].D
		to.BaseOffsetN[i], to.BaseOffsetD[i] = from.BaseOffset[i].N, from.BaseOffset[i].D
		to.AltOffsetN[i], to.AltOffsetD[i] = from.AlternateOffset[i].N, from.AlternateOffset[i].D
	}
	to.BaseHdrHeadroomN, to.BaseHdrHeadroomD = from.BaseHdrHeadroom.N, from.BaseHdrHeadroom.D
	to.AltHdrHeadroomN, to.AltHdrHeadroomD = from.AlternateHdrHeadroom.N, from.AlternateHdrHeadroom.D
	return to
}

func (m *gainmapMetadataFrac) allChannelsIdentical() bool {
	return m.GainMapMinN[0] == m.GainMapMinN[1] && m.GainMapMinN[0] == m.GainMapMinN[2] &&
		m.GainMapMinD[0] == m.GainMapMinD[1] && m.GainMapMinD[0] == m.GainMapMinD[2] &&
		m.GainMapMaxN[0] == m.GainMapMaxN[1] && m.GainMapMaxN[0] == m.GainMapMaxN[2] &&
		m.GainMapMaxD[0] == m.GainMapMaxD[1] && m.GainMapMaxD[0] == m.GainMapMaxD[2] &&
		m.GainMapGammaN[0] == m.GainMapGammaN[1] && m.GainMapGammaN[0] == m.GainMapGammaN[2] &&
		m.GainMapGammaD[0] == m.GainMapGammaD[1] && m.GainMapGammaD[0] == m.GainMapGammaD[2] &&
		m.BaseOffsetN[0] == m.BaseOffsetN[1] && m.BaseOffsetN[0] == m.BaseOffsetN[2] &&
		m.BaseOffsetD[0] == m.BaseOffsetD[1] && m.BaseOffsetD[0] == m.BaseOffsetD[2] &&
		m.AltOffsetN[0] == m.AltOffsetN[1] && m.AltOffsetN[0] == m.AltOffsetN[2] &&
		m.AltOffsetD[0] == m.AltOffsetD[1] && m.AltOffsetD[0] == m.AltOffsetD[2]
}
