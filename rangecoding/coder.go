package rangecoding

import (
	"github.com/streamcoder/divans/probability"
	"github.com/streamcoder/divans/status"
)

// Coder unifies Encoder and Decoder behind a single "get or put"
// calling convention: the same call site encodes a value it already
// holds, or decodes a value into the pointer it was given, depending
// on which concrete coder backs it. This is what lets codec's driver
// and the command sub-coders be written once and reused for both
// directions.
type Coder struct {
	enc *Encoder
	dec *Decoder
}

// NewEncoderCoder returns a Coder in encode mode, backed by a fresh
// Encoder with the given internal queue capacity.
func NewEncoderCoder(queueCapacity int) *Coder {
	return &Coder{enc: NewEncoder(queueCapacity)}
}

// NewDecoderCoder returns a Coder in decode mode, backed by a fresh
// Decoder with the given internal queue capacity.
func NewDecoderCoder(queueCapacity int) *Coder {
	return &Coder{dec: NewDecoder(queueCapacity)}
}

// IsEncoding reports whether this Coder encodes (true) or decodes
// (false).
func (c *Coder) IsEncoding() bool {
	return c.enc != nil
}

// Nibble encodes *sym if encoding, or overwrites *sym with the decoded
// value if decoding, against cdf at the given adaptation speed.
func (c *Coder) Nibble(sym *uint8, cdf probability.CDF16, speed probability.Speed) {
	if c.enc != nil {
		EncodeNibble(c.enc, *sym, cdf, speed)
		return
	}
	*sym = DecodeNibble(c.dec, cdf, speed)
}

// Bit encodes *val if encoding, or overwrites *val with the decoded bit
// if decoding, with probability P(1) = 1/2^logp.
func (c *Coder) Bit(val *int, logp uint) {
	if c.enc != nil {
		c.enc.EncodeBit(*val, logp)
		return
	}
	*val = c.dec.DecodeBit(logp)
}

// Uniform encodes *val if encoding, or overwrites *val with the decoded
// value if decoding, uniformly distributed over [0, ft).
func (c *Coder) Uniform(val *uint32, ft uint32) {
	if c.enc != nil {
		c.enc.EncodeUniform(*val, ft)
		return
	}
	*val = c.dec.DecodeUniform(ft)
}

// DrainOrFillInternalBuffer pumps the coder's internal byte queue: on
// an encoding Coder it drains queued output bytes into out starting at
// *outOff; on a decoding Coder it pushes caller input starting at
// *inOff into the queue.
func (c *Coder) DrainOrFillInternalBuffer(in []byte, inOff *int, out []byte, outOff *int) status.Status {
	if c.enc != nil {
		return c.enc.DrainOrFillInternalBuffer(out, outOff)
	}
	return c.dec.FillInternalBuffer(in, inOff)
}

// Checkpoint records a decoding Coder's state ahead of a decode
// attempt that may need to be undone; see Decoder.Checkpoint. On an
// encoding Coder it returns a zero Checkpoint.
func (c *Coder) Checkpoint() Checkpoint {
	if c.dec != nil {
		return c.dec.Checkpoint()
	}
	return Checkpoint{}
}

// Rollback restores a decoding Coder to a prior Checkpoint; a no-op on
// an encoding Coder.
func (c *Coder) Rollback(cp Checkpoint) {
	if c.dec != nil {
		c.dec.Rollback(cp)
	}
}

// Starved reports whether a decoding Coder read past the end of its
// queued input since the last Checkpoint. Always false when encoding.
func (c *Coder) Starved() bool {
	if c.dec != nil {
		return c.dec.Starved()
	}
	return false
}

// QueueFull reports whether a decoding Coder's internal queue can
// accept no more input. Always false when encoding.
func (c *Coder) QueueFull() bool {
	if c.dec != nil {
		return c.dec.QueueFull()
	}
	return false
}

// Close finalizes an encoding Coder; a no-op on a decoding Coder.
func (c *Coder) Close() {
	if c.enc != nil {
		c.enc.Close()
	}
}

// Closed reports whether an encoding Coder has been closed. A decoding
// Coder always reports true (it has no close phase of its own).
func (c *Coder) Closed() bool {
	if c.enc != nil {
		return c.enc.Closed()
	}
	return true
}
