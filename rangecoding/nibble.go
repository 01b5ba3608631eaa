package rangecoding

import "github.com/streamcoder/divans/probability"

// EncodeNibble encodes a 4-bit symbol (0-15) against cdf using a binary
// search over the symbol range, splitting at indices 7, 3, 1 along the
// leftmost path. Each level of the search narrows
// [lo, hi) to the sub-interval of the 16-entry CDF that the already
// decided bits point into and range-codes one more bit via EncodeBin.
func EncodeNibble(e *Encoder, sym uint8, cdf probability.CDF16, speed probability.Speed) {
	if sym > 15 {
		sym = 15
	}
	rangeLo, rangeHi := 0, 16
	lo, hi := uint16(0), cdf.Max()
	for level := 0; level < 4; level++ {
		mid := (rangeLo + rangeHi) / 2
		splitIdx := mid - 1
		var boundary uint16
		if splitIdx >= 0 {
			boundary = cdf.Cdf(splitIdx)
		}
		threshold := scaleProb(cdf, boundary, lo, hi)
		if int(sym) < mid {
			e.EncodeBin(0, uint32(threshold), 8)
			rangeHi = mid
			hi = boundary
		} else {
			e.EncodeBin(uint32(threshold), 256, 8)
			rangeLo = mid
			lo = boundary
		}
	}
	cdf.Blend(sym, speed)
}

// DecodeNibble decodes a 4-bit symbol against cdf, the exact inverse of
// EncodeNibble.
func DecodeNibble(d *Decoder, cdf probability.CDF16, speed probability.Speed) uint8 {
	rangeLo, rangeHi := 0, 16
	lo, hi := uint16(0), cdf.Max()
	for level := 0; level < 4; level++ {
		mid := (rangeLo + rangeHi) / 2
		splitIdx := mid - 1
		var boundary uint16
		if splitIdx >= 0 {
			boundary = cdf.Cdf(splitIdx)
		}
		threshold := scaleProb(cdf, boundary, lo, hi)
		scaled := d.DecodeBin(8)
		if uint32(scaled) < uint32(threshold) {
			d.Update(0, uint32(threshold), 256)
			rangeHi = mid
			hi = boundary
		} else {
			d.Update(uint32(threshold), 256, 256)
			rangeLo = mid
			lo = boundary
		}
	}
	sym := uint8(rangeLo)
	cdf.Blend(sym, speed)
	return sym
}

// scaleProb maps an absolute CDF boundary into a 1-255 byte threshold
// local to the current [lo, hi) sub-interval, for use as an EncodeBin/
// DecodeBin 8-bit split point. At the top level of the search ([0,
// Max)) a power-of-two total lets the scale be a shift by LogMax; both
// paths compute the same value, so encoder and decoder stay in step
// whichever one is taken. Clamped away from 0 and 256 so both branches
// of the binary search always carry nonzero probability mass.
func scaleProb(cdf probability.CDF16, boundary, lo, hi uint16) byte {
	if hi <= lo {
		return 128
	}
	var scaled uint32
	if logMax, ok := cdf.LogMax(); ok && lo == 0 && hi == cdf.Max() {
		scaled = uint32(boundary) << 8 >> logMax
	} else {
		scaled = (uint32(boundary-lo) << 8) / uint32(hi-lo)
	}
	if scaled < 1 {
		scaled = 1
	}
	if scaled > 255 {
		scaled = 255
	}
	return byte(scaled)
}
