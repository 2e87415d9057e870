package ir

import "math/bits"

// Timings in microseconds.
const (
	markExcess = 50

	necHdrMark   = 9000
	necHdrSpace  = 4500
	necRptSpace  = 2250
	necBitMark   = 560
	necOneSpace  = 1690
	necZeroSpace = 560
	necBits      = 32

	samsungHdrMark   = 4500
	samsungHdrSpace  = 4500
	samsungBitMark   = 560
	samsungOneSpace  = 1690
	samsungZeroSpace = 560
	samsungBits      = 32

	// header mark + header space + one mark/space pair per bit + stop mark
	fullFrameLen = 2 + 2*32 + 1
)

const (
	fnvBasis32 = 2166136261
	fnvPrime32 = 16777619
)

func match(measured, desired uint16, tol uint8) bool {
	lo := uint32(desired) * uint32(100-tol) / 100
	hi := uint32(desired) * uint32(100+tol) / 100
	m := uint32(measured)
	return m >= lo && m <= hi
}

// Demodulating receivers stretch marks and shorten spaces by a roughly fixed
// amount, so the expected value is shifted before the tolerance is applied.
func matchMark(measured, desired uint16, tol uint8) bool {
	return match(measured, desired+markExcess, tol)
}

func matchSpace(measured, desired uint16, tol uint8) bool {
	if desired > markExcess {
		desired -= markExcess
	}
	return match(measured, desired, tol)
}

// decodeBits reads n pulse-distance bits MSB first from raw, which must
// start at the first bit mark.
func decodeBits(raw []uint16, n int, bitMark, oneSpace, zeroSpace uint16, tol uint8) (uint64, bool) {
	if len(raw) < 2*n {
		return 0, false
	}
	var v uint64
	for i := 0; i < n; i++ {
		if !matchMark(raw[2*i], bitMark, tol) {
			return 0, false
		}
		space := raw[2*i+1]
		switch {
		case matchSpace(space, oneSpace, tol):
			v = v<<1 | 1
		case matchSpace(space, zeroSpace, tol):
			v <<= 1
		default:
			return 0, false
		}
	}
	return v, true
}

func decodeNEC(res *Result, tol uint8) bool {
	raw := res.Raw
	if len(raw) < 3 || !matchMark(raw[0], necHdrMark, tol) {
		return false
	}

	if matchSpace(raw[1], necRptSpace, tol) && matchMark(raw[2], necBitMark, tol) {
		res.Protocol = NEC
		res.Value = RepeatValue
		res.Repeat = true
		return true
	}

	if len(raw) < fullFrameLen || !matchSpace(raw[1], necHdrSpace, tol) {
		return false
	}
	v, ok := decodeBits(raw[2:], necBits, necBitMark, necOneSpace, necZeroSpace, tol)
	if !ok || !matchMark(raw[fullFrameLen-1], necBitMark, tol) {
		return false
	}

	b0 := uint8(v >> 24)
	b1 := uint8(v >> 16)
	b2 := uint8(v >> 8)

	res.Protocol = NEC
	res.Value = v
	res.Bits = necBits
	res.Address = uint32(bits.Reverse8(b0))
	if b1 != ^b0 {
		// extended NEC: 16-bit address, no inverted address byte
		res.Address |= uint32(bits.Reverse8(b1)) << 8
	}
	res.Command = uint32(bits.Reverse8(b2))
	return true
}

func decodeSamsung(res *Result, tol uint8) bool {
	raw := res.Raw
	if len(raw) < fullFrameLen {
		return false
	}
	if !matchMark(raw[0], samsungHdrMark, tol) || !matchSpace(raw[1], samsungHdrSpace, tol) {
		return false
	}
	v, ok := decodeBits(raw[2:], samsungBits, samsungBitMark, samsungOneSpace, samsungZeroSpace, tol)
	if !ok || !matchMark(raw[fullFrameLen-1], samsungBitMark, tol) {
		return false
	}

	res.Protocol = Samsung
	res.Value = v
	res.Bits = samsungBits
	res.Address = uint32(bits.Reverse8(uint8(v >> 24)))
	res.Command = uint32(bits.Reverse8(uint8(v >> 8)))
	return true
}

// decodeHash gives an unrecognised message a stable 32-bit value by hashing
// whether each duration is shorter, equal to, or longer than the one two
// entries later.
func decodeHash(res *Result) {
	raw := res.Raw
	hash := uint32(fnvBasis32)
	for i := 0; i+2 < len(raw); i++ {
		hash = hash*fnvPrime32 ^ compareDurations(raw[i], raw[i+2])
	}
	res.Protocol = Unknown
	res.Value = uint64(hash)
	res.Bits = 32
}

func compareDurations(prev, next uint16) uint32 {
	p, n := uint32(prev), uint32(next)
	switch {
	case n < p*8/10:
		return 0
	case p < n*8/10:
		return 2
	default:
		return 1
	}
}
