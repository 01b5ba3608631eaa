package rdiffsig

import (
	"bytes"

	"github.com/streamcoder/divans/alloc"
)

// CustomDictionary reconstructs recognized blocks of a reference byte
// stream into a block-indexed dictionary. Feed the reference through
// Write (in any number of slices), then Flush; data holds the matched
// blocks and invalid marks which bytes were actually recovered (0x00)
// versus never matched (0xFF).
type CustomDictionary struct {
	data    []byte
	invalid []byte

	// ringBuffer holds the last blockSize input bytes; ringBufferOffset
	// points at the oldest of them, so the logical window reads
	// ringBuffer[offset:] then ringBuffer[:offset].
	ringBuffer       []byte
	ringBufferOffset uint32

	rollingCRC32 uint32
	rollingCount uint32
}

// NewCustomDictionary allocates a dictionary sized for every block
// sigFile describes, with every byte initially marked invalid.
func NewCustomDictionary(a *alloc.Allocator, sigFile *SigFile) *CustomDictionary {
	data := a.AllocCell(int(sigFile.BlockSize()) * len(sigFile.Signatures()))
	invalid := a.AllocCell(len(data))
	for i := range invalid {
		invalid[i] = 0xFF
	}
	return &CustomDictionary{
		data:       data,
		invalid:    invalid,
		ringBuffer: a.AllocCell(int(sigFile.BlockSize())),
	}
}

// Data returns the reconstructed dictionary bytes.
func (d *CustomDictionary) Data() []byte {
	return d.data
}

// Invalid returns the per-byte validity map: 0x00 where Data holds a
// verified byte, 0xFF where nothing matched.
func (d *CustomDictionary) Invalid() []byte {
	return d.invalid
}

// speculativeAddHelper verifies the current window against the crypto
// signature at sigOffset and, on a match, copies the window into dict
// and zeroes the matching invalid span. The mutable dict/invalid spans
// are passed separately from the ring-buffer read so no slice aliases
// another.
func speculativeAddHelper(sigOffset int, sigFile *SigFile, length uint32,
	ringBuffer []byte, ringBufferOffset int, dict, invalid []byte) bool {
	h := newHasher(sigFile.kind)
	tail := ringBuffer[ringBufferOffset:]
	firstRingCopyLen := int(length)
	if firstRingCopyLen > len(tail) {
		firstRingCopyLen = len(tail)
	}
	h.Write(tail[:firstRingCopyLen])
	head := ringBuffer[:ringBufferOffset]
	secondRingCopyLen := int(length) - firstRingCopyLen
	if secondRingCopyLen > len(head) {
		secondRingCopyLen = len(head)
	}
	h.Write(head[:secondRingCopyLen])
	sum := h.Sum(nil)[:sigFile.sigSize]
	if !bytes.Equal(sigFile.signatures[sigOffset].CryptoSig.Slice(), sum) {
		return false
	}
	dictTarget := sigOffset * int(sigFile.blockSize)
	copy(dict[dictTarget:], tail[:firstRingCopyLen])
	copy(dict[dictTarget+firstRingCopyLen:], head[:secondRingCopyLen])
	for i := dictTarget; i < dictTarget+firstRingCopyLen+secondRingCopyLen; i++ {
		invalid[i] = 0
	}
	return true
}

func (d *CustomDictionary) speculativeAdd(sigOffset int, sigFile *SigFile, length uint32) bool {
	return speculativeAddHelper(sigOffset, sigFile, length,
		d.ringBuffer, int(d.ringBufferOffset), d.data, d.invalid)
}

// Write feeds reference bytes through the matcher. It may be called any
// number of times with any slicing of the reference stream.
//
// Matches are assumed non-overlapping: after a verified match the
// window restarts at the following byte rather than re-hashing shifted
// windows, so a reference crafted with overlapping signed blocks can
// yield a sparser dictionary than exhaustive search would.
func (d *CustomDictionary) Write(input []byte, hint *SigHint, sigFile *SigFile) {
	for len(input) != 0 {
		for int(d.rollingCount) < len(d.ringBuffer) {
			toCopy := len(d.ringBuffer) - int(d.rollingCount)
			if toCopy > len(input) {
				toCopy = len(input)
			}
			copy(d.ringBuffer[d.rollingCount:], input[:toCopy])
			d.rollingCount += uint32(toCopy)
			input = input[toCopy:]
			if int(d.rollingCount) != len(d.ringBuffer) {
				return
			}
			d.rollingCRC32 = crcUpdate(0, d.ringBuffer)
			if sigOffset, ok := hint.Lookup(d.rollingCRC32); ok {
				if d.speculativeAdd(sigOffset, sigFile, d.rollingCount) {
					// Match: restart the warm-up at the next byte.
					d.rollingCount = 0
				}
			}
		}
		// The ring is fully populated: slide one byte at a time.
		matched := false
		for index, item := range input {
			oldByte := d.ringBuffer[d.ringBufferOffset]
			d.rollingCRC32 = crcRotate(d.rollingCRC32, sigFile.blockSize, oldByte, item)
			d.ringBuffer[d.ringBufferOffset] = item
			d.ringBufferOffset++
			if d.ringBufferOffset == sigFile.blockSize {
				d.ringBufferOffset = 0
			}
			if sigOffset, ok := hint.Lookup(d.rollingCRC32); ok &&
				d.speculativeAdd(sigOffset, sigFile, d.rollingCount) {
				d.rollingCount = 0
				d.ringBufferOffset = 0
				input = input[index+1:]
				matched = true
				break
			}
		}
		if !matched {
			return
		}
	}
}

// Flush ends the reference stream. It shrinks the residual window one
// byte at a time, giving the hint one final scan; the rollout checksum
// of each shortened window is computed but the scan still consults the
// last full-window checksum, so in practice no tail shorter than a full
// block matches.
func (d *CustomDictionary) Flush(hint *SigHint, sigFile *SigFile) {
	tail := d.ringBuffer[d.ringBufferOffset:]
	seg := int(d.rollingCount)
	if seg > len(tail) {
		seg = len(tail)
	}
	head := d.ringBuffer[:d.ringBufferOffset]
	headSeg := int(d.rollingCount) - seg
	if headSeg > len(head) {
		headSeg = len(head)
	}
	for _, slice := range [2][]byte{tail[:seg], head[:headSeg]} {
		for rollMod, item := range slice {
			crcRollout(d.rollingCRC32, d.rollingCount-uint32(rollMod), item)
			if sigOffset, ok := hint.Lookup(d.rollingCRC32); ok &&
				speculativeAddHelper(sigOffset, sigFile, d.rollingCount-uint32(rollMod),
					d.ringBuffer, int(d.ringBufferOffset), d.data, d.invalid) {
				d.rollingCount = 0
				d.ringBufferOffset = 0
				return
			}
		}
		d.rollingCount -= uint32(len(slice))
	}
}

// Free returns every buffer this dictionary holds to the allocator. The
// dictionary must not be used afterward.
func (d *CustomDictionary) Free(a *alloc.Allocator) {
	a.FreeCell(d.data)
	a.FreeCell(d.invalid)
	a.FreeCell(d.ringBuffer)
	d.data = nil
	d.invalid = nil
	d.ringBuffer = nil
}
