package rangecoding

import (
	"math/bits"

	"github.com/streamcoder/divans/status"
)

// Decoder implements the streaming dual of Encoder, pulling bytes
// from a bounded internal Queue that the caller refills via
// FillInternalBuffer.
//
// Reading past the end of queued input yields zero bytes, the usual
// tolerance for reads past the end of a range-coded stream. That is
// correct at the true end of a stream and wrong in the middle of one.
// The decoder cannot tell the two apart, so it records the fact in a
// starvation flag instead: a caller that may still receive more input
// takes a Checkpoint before decoding, checks Starved afterward, and on
// starvation rolls back and retries the whole decode once more bytes
// arrive. Rollback restores the queue's cursors, which is sound
// because nothing is pushed between Checkpoint and Rollback.
type Decoder struct {
	q           *Queue
	rng         uint32
	val         uint32
	rem         int
	ext         uint32
	nbitsTotal  int
	err         int
	initialized bool
	starved     bool
}

// Checkpoint captures everything a Rollback needs to undo the byte
// consumption and range-state changes of a decode attempt.
type Checkpoint struct {
	rng         uint32
	val         uint32
	rem         int
	ext         uint32
	nbitsTotal  int
	err         int
	initialized bool
	qHead       int
	qLen        int
}

// NewDecoder returns a ready-to-use Decoder backed by an internal queue
// of the given byte capacity. Call FillInternalBuffer before any Decode*
// call; the first decode lazily performs range-coder initialization.
func NewDecoder(queueCapacity int) *Decoder {
	return &Decoder{q: NewQueue(queueCapacity)}
}

// Reset returns the decoder to its pre-initialization state, discarding
// any queued but unread input.
func (d *Decoder) Reset() {
	d.q = NewQueue(d.q.Cap())
	d.rng = 0
	d.val = 0
	d.rem = 0
	d.ext = 0
	d.nbitsTotal = 0
	d.err = 0
	d.initialized = false
	d.starved = false
}

// Checkpoint records the decoder's current state and clears the
// starvation flag, so a subsequent Starved reflects only the decode
// attempt that follows.
func (d *Decoder) Checkpoint() Checkpoint {
	d.starved = false
	return Checkpoint{
		rng:         d.rng,
		val:         d.val,
		rem:         d.rem,
		ext:         d.ext,
		nbitsTotal:  d.nbitsTotal,
		err:         d.err,
		initialized: d.initialized,
		qHead:       d.q.head,
		qLen:        d.q.n,
	}
}

// Rollback restores the state captured by Checkpoint, un-popping every
// byte consumed since. It must not be used if the queue was pushed to
// after the checkpoint was taken.
func (d *Decoder) Rollback(cp Checkpoint) {
	d.rng = cp.rng
	d.val = cp.val
	d.rem = cp.rem
	d.ext = cp.ext
	d.nbitsTotal = cp.nbitsTotal
	d.err = cp.err
	d.initialized = cp.initialized
	d.q.head = cp.qHead
	d.q.n = cp.qLen
	d.starved = false
}

// Starved reports whether any read since the last Checkpoint (or Reset)
// ran past the end of queued input.
func (d *Decoder) Starved() bool {
	return d.starved
}

// QueueFull reports whether the internal queue has no room left for
// more input.
func (d *Decoder) QueueFull() bool {
	return d.q.PushBytesAvail() == 0
}

// FillInternalBuffer pushes caller input into the internal queue,
// advancing *inOff by the number of bytes consumed. It only pushes;
// range-coder initialization is deferred to the first decode call so
// that every byte the decoder consumes, initialization included, falls
// inside a Checkpoint/Rollback window.
func (d *Decoder) FillInternalBuffer(in []byte, inOff *int) status.Status {
	n := d.q.PushFrom(in[*inOff:])
	*inOff += n
	return status.Success
}

// ensureInit performs range-coder initialization on the first decode
// call, consuming the stream's leading bytes from the queue.
func (d *Decoder) ensureInit() {
	if d.initialized {
		return
	}
	d.rng = 1 << EC_CODE_EXTRA
	d.rem = int(d.readByte())
	d.val = d.rng - 1 - uint32(d.rem>>(EC_SYM_BITS-EC_CODE_EXTRA))
	d.nbitsTotal = EC_CODE_BITS + 1 -
		((EC_CODE_BITS-EC_CODE_EXTRA)/EC_SYM_BITS)*EC_SYM_BITS
	d.ext = 0
	d.initialized = true
	d.normalize()
}

// readByte pops the next byte from the internal queue. Past the end of
// queued input it returns 0 and raises the starvation flag.
func (d *Decoder) readByte() byte {
	b, ok := d.q.Pop()
	if !ok {
		d.starved = true
		return 0
	}
	return b
}

// normalize renormalizes the range, pulling more queued bytes as
// needed.
func (d *Decoder) normalize() {
	for d.rng <= EC_CODE_BOT {
		d.nbitsTotal += EC_SYM_BITS
		d.rng <<= EC_SYM_BITS
		sym := d.rem
		d.rem = int(d.readByte())
		sym = (sym<<EC_SYM_BITS | d.rem) >> (EC_SYM_BITS - EC_CODE_EXTRA)
		d.val = ((d.val << EC_SYM_BITS) + uint32(EC_SYM_MAX&^sym)) & (EC_CODE_TOP - 1)
	}
}

// DecodeBin returns the scaled symbol value for a power-of-two total
// frequency 1<<bits, without updating state. The caller must follow up
// with Update(fl, fh, 1<<bits) using the bucket the returned value
// fell into.
func (d *Decoder) DecodeBin(bits uint) uint32 {
	if bits == 0 {
		return 0
	}
	d.ensureInit()
	ft := uint32(1) << bits
	d.ext = d.rng >> bits
	s := d.val / d.ext
	if s+1 > ft {
		s = ft - 1
	}
	return ft - (s + 1)
}

func (d *Decoder) decode(ft uint32) uint32 {
	d.ensureInit()
	d.ext = d.rng / ft
	s := d.val / d.ext
	if s+1 > ft {
		s = ft - 1
	}
	return ft - (s + 1)
}

func (d *Decoder) update(fl, fh, ft uint32) {
	s := d.ext * (ft - fh)
	d.val -= s
	if fl > 0 {
		d.rng = d.ext * (fh - fl)
	} else {
		d.rng -= s
	}
	d.normalize()
}

// Update applies a range update using the cumulative frequencies
// surrounding the symbol DecodeBin or Decode most recently returned.
func (d *Decoder) Update(fl, fh, ft uint32) {
	d.update(fl, fh, ft)
}

// Decode returns the scaled symbol value for total frequency ft, without
// updating state; pair with Update as with DecodeBin.
func (d *Decoder) Decode(ft uint32) uint32 {
	return d.decode(ft)
}

// DecodeBit decodes a single bit with probability P(1) = 1/2^logp.
func (d *Decoder) DecodeBit(logp uint) int {
	d.ensureInit()
	r := d.rng
	dval := d.val
	s := r >> logp
	ret := 0
	if dval < s {
		ret = 1
	} else {
		d.val = dval - s
	}
	if ret == 1 {
		d.rng = s
	} else {
		d.rng = r - s
	}
	d.normalize()
	return ret
}

// DecodeUniform decodes a uniformly distributed value in [0, ft),
// symmetric with Encoder.EncodeUniform.
func (d *Decoder) DecodeUniform(ft uint32) uint32 {
	if ft <= 1 {
		return 0
	}
	ft--
	ftb := ilog(ft)
	if ftb > EC_UINT_BITS {
		ftb -= EC_UINT_BITS
		ft1 := (ft >> uint(ftb)) + 1
		s := d.decode(ft1)
		d.update(s, s+1, ft1)

		low := d.DecodeBin(uint(ftb))
		d.update(low, low+1, uint32(1)<<uint(ftb))

		t := (s << uint(ftb)) | low
		if t <= ft {
			return t
		}
		d.err = 1
		return ft
	}
	ft++
	s := d.decode(ft)
	d.update(s, s+1, ft)
	return s
}

// Tell returns the number of bits consumed so far.
func (d *Decoder) Tell() int {
	return d.nbitsTotal - ilog(d.rng)
}

// Error returns the decoder error flag; non-zero indicates an error.
func (d *Decoder) Error() int {
	return d.err
}

// ilog computes the position of the highest set bit plus one, 0 for 0.
func ilog(x uint32) int {
	return bits.Len32(x)
}
