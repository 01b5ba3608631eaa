package rangecoding

import "github.com/streamcoder/divans/status"

// Encoder implements a streaming range encoder per RFC 6716 Section
// 4.1's carry-propagation and renormalization rules, writing into a
// bounded internal Queue so it can be driven across many small calls
// instead of needing its total output size known up front.
type Encoder struct {
	q          *Queue
	rng        uint32
	val        uint32
	rem        int // buffered byte for carry propagation, -1 = none yet
	ext        uint32
	nbitsTotal int
	err        int
	closed     bool
}

// NewEncoder returns a ready-to-use Encoder backed by an internal queue
// of the given byte capacity.
func NewEncoder(queueCapacity int) *Encoder {
	e := &Encoder{q: NewQueue(queueCapacity)}
	e.Reset()
	return e
}

// Reset returns the encoder to its initial state, discarding any queued
// but undrained output.
func (e *Encoder) Reset() {
	e.q = NewQueue(e.q.Cap())
	e.rng = EC_CODE_TOP
	e.val = 0
	e.rem = -1
	e.ext = 0
	e.nbitsTotal = EC_CODE_BITS + 1
	e.err = 0
	e.closed = false
}

// writeByte queues one output byte. The codec driver is expected to
// drain via DrainOrFillInternalBuffer often enough that the queue never
// fills; overflow here means that contract was violated.
func (e *Encoder) writeByte(b byte) {
	if !e.q.Push(b) {
		panic("rangecoding: internal queue overflow, caller must drain output before encoding more")
	}
}

// carryOut handles carry propagation when outputting bytes. Bytes are
// not complemented here; the decoder accounts for that in its own
// normalization formula.
func (e *Encoder) carryOut(c int) {
	if c != EC_SYM_MAX {
		carry := c >> EC_SYM_BITS
		if e.rem >= 0 {
			e.writeByte(byte(e.rem + carry))
		}
		if e.ext > 0 {
			sym := (EC_SYM_MAX + carry) & EC_SYM_MAX
			for e.ext > 0 {
				e.writeByte(byte(sym))
				e.ext--
			}
		}
		e.rem = c & EC_SYM_MAX
	} else {
		e.ext++
	}
}

// normalize renormalizes the range and queues any bytes that become
// determined.
func (e *Encoder) normalize() {
	for e.rng <= EC_CODE_BOT {
		e.carryOut(int(e.val >> EC_CODE_SHIFT))
		e.val = (e.val << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		e.rng <<= EC_SYM_BITS
		e.nbitsTotal += EC_SYM_BITS
	}
}

// Encode encodes a symbol with cumulative frequencies [fl, fh) out of ft.
func (e *Encoder) Encode(fl, fh, ft uint32) {
	r := e.rng / ft
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeBin encodes a symbol with power-of-two total frequency 1<<bits.
func (e *Encoder) EncodeBin(fl, fh uint32, bits uint) {
	if bits == 0 {
		return
	}
	r := e.rng >> bits
	if fl > 0 {
		e.val += e.rng - r*((uint32(1)<<bits)-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * ((uint32(1) << bits) - fh)
	}
	e.normalize()
}

// EncodeBit encodes a single bit with probability P(1) = 1/2^logp.
func (e *Encoder) EncodeBit(val int, logp uint) {
	if logp == 0 {
		return
	}
	r := e.rng
	s := r >> logp
	if val != 0 {
		e.val += r - s
		e.rng = s
	} else {
		e.rng = r - s
	}
	e.normalize()
}

// encodeUniformInternal encodes a uniform value when ft <= 256.
func (e *Encoder) encodeUniformInternal(val uint32, ft uint32) {
	r := e.rng / ft
	if val > 0 {
		e.val += e.rng - r*(ft-val)
		e.rng = r
	} else {
		e.rng -= r * (ft - 1)
	}
	e.normalize()
}

// EncodeUniform encodes a uniformly distributed value in [0, ft).
// Large ft values split into a range-coded high part and an
// EncodeBin-coded low part; the low part is range coded rather than
// stashed as raw bits at the end of the stream, since this encoder has
// no fixed-size output buffer to borrow end-space from.
func (e *Encoder) EncodeUniform(val uint32, ft uint32) {
	if ft <= 1 {
		return
	}
	ftb := uint(ilog(ft - 1))
	if ftb > EC_SYM_BITS {
		ftb -= EC_SYM_BITS
		ft1 := ((ft - 1) >> ftb) + 1
		e.encodeUniformInternal(val>>ftb, ft1)
		low := val & ((1 << ftb) - 1)
		e.EncodeBin(low, low+1, ftb)
	} else {
		e.encodeUniformInternal(val, ft)
	}
}

// Close finalizes the encoding, flushing carry-propagated bytes into the
// internal queue. After Close, drain the queue via
// DrainOrFillInternalBuffer until it reports status.Success.
func (e *Encoder) Close() {
	if e.closed {
		return
	}
	l := EC_CODE_BITS - int(ilog(e.rng))
	msk := (uint32(EC_CODE_TOP - 1)) >> uint(l)
	end := (e.val + msk) &^ msk
	if (end | msk) >= e.val+e.rng {
		l++
		msk >>= 1
		end = (e.val + msk) &^ msk
	}
	for l > 0 {
		e.carryOut(int(end >> EC_CODE_SHIFT))
		end = (end << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		l -= EC_SYM_BITS
	}
	if e.rem >= 0 || e.ext > 0 {
		e.carryOut(0)
	}
	e.closed = true
}

// Closed reports whether Close has been called.
func (e *Encoder) Closed() bool {
	return e.closed
}

// DrainOrFillInternalBuffer copies queued output bytes into out starting
// at *outOff, advancing *outOff by the number copied. It returns
// status.NeedsMoreOutput if bytes remain queued after out fills up, or
// status.Success once the queue is fully drained.
func (e *Encoder) DrainOrFillInternalBuffer(out []byte, outOff *int) status.Status {
	n := e.q.PopInto(out[*outOff:])
	*outOff += n
	if e.q.Len() > 0 {
		return status.NeedsMoreOutput
	}
	return status.Success
}

// Tell returns the number of bits written so far.
func (e *Encoder) Tell() int {
	return e.nbitsTotal - int(ilog(e.rng))
}

// Error returns the encoder error flag; non-zero indicates an error.
func (e *Encoder) Error() int {
	return e.err
}
