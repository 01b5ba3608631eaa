// Package rdiffsig implements block signatures over a byte stream: a
// weak rolling checksum paired with a truncated cryptographic digest per
// fixed-size block, a streaming-resumable on-disk signature file format,
// and a CustomDictionary that replays a reference byte stream against a
// signature file to reconstruct the blocks it recognizes.
package rdiffsig

import (
	"bytes"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/md4"

	"github.com/streamcoder/divans"
	"github.com/streamcoder/divans/types"
)

var md4Magic = [4]byte{0x72, 0x73, 0x01, 0x36}
var blake5Magic = [4]byte{0x72, 0x73, 0x01, 0x37}

// headerSize is the fixed on-disk prefix: 4 magic bytes, a u32 block
// size, and a u32 crypto signature size.
const headerSize = 12

// MaxCryptoSigSize is the largest supported crypto signature, in bytes.
const MaxCryptoSigSize = 32

// ValidCryptoSigSize reports whether n is one of the supported crypto
// signature sizes.
func ValidCryptoSigSize(n int) bool {
	switch n {
	case 2, 3, 4, 5, 6, 7, 8, 12, 16, 24, 32:
		return true
	}
	return false
}

// The 32-bit fields in the file header and records are written by hand,
// most significant byte first. Do not swap these for the little-endian
// binary helpers; the byte order is part of the format.
func u32ToBytes(v uint32) [4]byte {
	return [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func bytesToU32(b []byte) uint32 {
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}

// CryptoSig is a fixed-capacity digest container tagged with its runtime
// size. One tagged struct stands in for a family of fixed-size buffer
// types; the unused tail of buf is always zero so values compare
// directly.
type CryptoSig struct {
	size uint8
	buf  [MaxCryptoSigSize]byte
}

// Slice returns the digest bytes. The returned slice aliases the
// container; callers must not hold it across mutation.
func (c *CryptoSig) Slice() []byte {
	return c.buf[:c.size]
}

func (c *CryptoSig) set(b []byte) {
	c.size = uint8(len(b))
	copy(c.buf[:], b)
}

// Signature identifies one block: a weak rolling checksum for cheap
// candidate lookup and a truncated crypto digest for verification.
type Signature struct {
	CRC32     uint32
	CryptoSig CryptoSig
}

// SigFile holds an ordered sequence of block signatures plus the block
// size and hash kind they were computed with.
type SigFile struct {
	blockSize  uint32
	sigSize    int
	kind       types.HashKind
	signatures []Signature
}

func newHasher(kind types.HashKind) hash.Hash {
	if kind == types.HashBLAKE5 {
		h, _ := blake2b.New256(nil)
		return h
	}
	return md4.New()
}

// New computes a signature file over buf: one signature per blockSize
// bytes, the final one covering whatever remains. sigSize must be a
// supported size no larger than the hash kind's digest.
func New(blockSize uint32, sigSize int, kind types.HashKind, buf []byte) (*SigFile, error) {
	if !ValidCryptoSigSize(sigSize) || sigSize > kind.DigestSize() {
		return nil, divans.ErrWrongSigSize
	}
	if blockSize == 0 {
		return nil, divans.ErrTruncatedSignature
	}
	numSignatures := (len(buf) + int(blockSize) - 1) / int(blockSize)
	f := &SigFile{
		blockSize:  blockSize,
		sigSize:    sigSize,
		kind:       kind,
		signatures: make([]Signature, numSignatures),
	}
	for index := range f.signatures {
		start := index * int(blockSize)
		end := start + int(blockSize)
		if end > len(buf) {
			end = len(buf)
		}
		block := buf[start:end]
		h := newHasher(kind)
		h.Write(block)
		f.signatures[index].CryptoSig.set(h.Sum(nil)[:sigSize])
		f.signatures[index].CRC32 = crcUpdate(0, block)
	}
	return f, nil
}

// Signatures returns the ordered block signatures.
func (f *SigFile) Signatures() []Signature {
	return f.signatures
}

// BlockSize returns the number of bytes each signature covers (except
// possibly the last).
func (f *SigFile) BlockSize() uint32 {
	return f.blockSize
}

// SigSize returns the per-record crypto signature size in bytes.
func (f *SigFile) SigSize() int {
	return f.sigSize
}

// Kind returns the hash kind the crypto signatures were computed with.
func (f *SigFile) Kind() types.HashKind {
	return f.kind
}

// SerializedSize returns the total on-disk size of this signature file.
func (f *SigFile) SerializedSize() int {
	return headerSize + len(f.signatures)*(4+f.sigSize)
}

// Free releases the signature storage. The SigFile must not be used
// afterward.
func (f *SigFile) Free() {
	f.signatures = nil
}

func (f *SigFile) magic() [4]byte {
	if f.kind == types.HashBLAKE5 {
		return blake5Magic
	}
	return md4Magic
}

func serializeRecord(sig *Signature, sigSize int, out []byte) {
	crc := u32ToBytes(sig.CRC32)
	copy(out, crc[:])
	copy(out[4:], sig.CryptoSig.Slice()[:sigSize])
}

// Serialize writes the on-disk form starting at *inputOffset into
// output at *outputOffset, advancing both as far as the output allows.
// It reports whether the whole file has now been written; call again
// with more output space until it does.
func (f *SigFile) Serialize(inputOffset *int, output []byte, outputOffset *int) bool {
	for *inputOffset < headerSize && *outputOffset < len(output) {
		var hdr [headerSize]byte
		magic := f.magic()
		copy(hdr[0:4], magic[:])
		bs := u32ToBytes(f.blockSize)
		copy(hdr[4:8], bs[:])
		ss := u32ToBytes(uint32(f.sigSize))
		copy(hdr[8:12], ss[:])
		toCopy := headerSize - *inputOffset
		if rem := len(output) - *outputOffset; rem < toCopy {
			toCopy = rem
		}
		copy(output[*outputOffset:], hdr[*inputOffset:*inputOffset+toCopy])
		*inputOffset += toCopy
		*outputOffset += toCopy
	}
	if *inputOffset < headerSize {
		return false
	}
	stride := 4 + f.sigSize
	var record [4 + MaxCryptoSigSize]byte
	for {
		index := (*inputOffset - headerSize) / stride
		if index >= len(f.signatures) {
			return true
		}
		recordOffset := (*inputOffset - headerSize) % stride
		toCopy := stride - recordOffset
		if rem := len(output) - *outputOffset; rem < toCopy {
			toCopy = rem
		}
		if toCopy == 0 {
			return false
		}
		serializeRecord(&f.signatures[index], f.sigSize, record[:])
		copy(output[*outputOffset:], record[recordOffset:recordOffset+toCopy])
		*inputOffset += toCopy
		*outputOffset += toCopy
	}
}

func parseHeader(hdr []byte) (kind types.HashKind, blockSize uint32, sigSize int, hint int, err error) {
	switch {
	case bytes.Equal(hdr[0:4], md4Magic[:]):
		kind = types.HashMD4
	case bytes.Equal(hdr[0:4], blake5Magic[:]):
		kind = types.HashBLAKE5
	default:
		return 0, 0, 0, 0, divans.ErrBadMagic
	}
	blockSize = bytesToU32(hdr[4:8])
	declared := bytesToU32(hdr[8:headerSize])
	if !ValidCryptoSigSize(int(declared)) || int(declared) > kind.DigestSize() {
		return 0, 0, 0, int(declared), divans.ErrWrongSigSize
	}
	return kind, blockSize, int(declared), 0, nil
}

func parseRecord(record []byte, sigSize int) Signature {
	var sig Signature
	sig.CRC32 = bytesToU32(record)
	sig.CryptoSig.set(record[4 : 4+sigSize])
	return sig
}

// Deserialize parses a complete on-disk signature file. On failure the
// int is a size hint: the declared crypto signature size when it is
// unsupported, the trailing payload length when the records are
// truncated, and zero otherwise.
func Deserialize(onDisk []byte) (*SigFile, int, error) {
	if len(onDisk) < headerSize {
		return nil, 0, divans.ErrTruncatedSignature
	}
	kind, blockSize, sigSize, hint, err := parseHeader(onDisk[:headerSize])
	if err != nil {
		return nil, hint, err
	}
	stride := 4 + sigSize
	payload := len(onDisk) - headerSize
	if payload%stride != 0 {
		return nil, payload, divans.ErrTruncatedSignature
	}
	f := &SigFile{
		blockSize:  blockSize,
		sigSize:    sigSize,
		kind:       kind,
		signatures: make([]Signature, payload/stride),
	}
	for index := range f.signatures {
		f.signatures[index] = parseRecord(onDisk[headerSize+index*stride:], sigSize)
	}
	return f, 0, nil
}

// Deserializer incrementally parses a signature file from arbitrarily
// chunked input. Push every chunk, then call Finish once the input is
// exhausted; the result is identical to a one-shot Deserialize of the
// concatenated bytes.
type Deserializer struct {
	f        *SigFile
	header   [headerSize]byte
	headerN  int
	partial  [4 + MaxCryptoSigSize]byte
	partialN int
	stride   int
	hint     int
	err      error
}

// Push consumes input. A non-nil error is sticky and will also be
// returned from Finish.
func (d *Deserializer) Push(input []byte) error {
	if d.err != nil {
		return d.err
	}
	for len(input) > 0 {
		if d.f == nil {
			n := copy(d.header[d.headerN:], input)
			d.headerN += n
			input = input[n:]
			if d.headerN < headerSize {
				return nil
			}
			kind, blockSize, sigSize, hint, err := parseHeader(d.header[:])
			if err != nil {
				d.hint, d.err = hint, err
				return err
			}
			d.f = &SigFile{blockSize: blockSize, sigSize: sigSize, kind: kind}
			d.stride = 4 + sigSize
			continue
		}
		if d.partialN != 0 || len(input) < d.stride {
			n := copy(d.partial[d.partialN:d.stride], input)
			d.partialN += n
			input = input[n:]
			if d.partialN == d.stride {
				d.f.signatures = append(d.f.signatures, parseRecord(d.partial[:d.stride], d.f.sigSize))
				d.partialN = 0
			}
			continue
		}
		d.f.signatures = append(d.f.signatures, parseRecord(input, d.f.sigSize))
		input = input[d.stride:]
	}
	return nil
}

// Finish validates that the pushed input formed a complete file and
// returns it. The int is the same size hint Deserialize reports.
func (d *Deserializer) Finish() (*SigFile, int, error) {
	if d.err != nil {
		return nil, d.hint, d.err
	}
	if d.f == nil {
		return nil, 0, divans.ErrTruncatedSignature
	}
	if d.partialN != 0 {
		return nil, len(d.f.signatures)*d.stride + d.partialN, divans.ErrTruncatedSignature
	}
	return d.f, 0, nil
}

// SigHint is a fixed-size index from rolling checksum to signature
// position. Collisions overwrite: only the last-inserted index survives,
// trading lost matches on colliding checksums for a bounded structure.
type SigHint struct {
	crc32ToSigIndex map[uint32]int
}

// CreateSigHint builds the checksum lookup index for this file.
func (f *SigFile) CreateSigHint() *SigHint {
	hint := &SigHint{
		crc32ToSigIndex: make(map[uint32]int, len(f.signatures)),
	}
	for index := range f.signatures {
		hint.crc32ToSigIndex[f.signatures[index].CRC32] = index
	}
	return hint
}

// Lookup returns the signature index recorded for crc, if any.
func (h *SigHint) Lookup(crc uint32) (int, bool) {
	index, ok := h.crc32ToSigIndex[crc]
	return index, ok
}
