// Package codec implements the top-level command-stream driver state
// machine: it serializes/deserializes an ordered stream of
// Copy/Dict/Literal/BlockSwitch/PredictionMode commands through an
// arithmetic coder, replaying each completed command into a ring-buffer
// recoder, and remains fully restartable across calls.
package codec

import (
	"github.com/streamcoder/divans"
	"github.com/streamcoder/divans/alloc"
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/codec/blocktype"
	copycoder "github.com/streamcoder/divans/codec/copy"
	"github.com/streamcoder/divans/codec/dict"
	"github.com/streamcoder/divans/codec/literal"
	"github.com/streamcoder/divans/codec/predmode"
	"github.com/streamcoder/divans/probability"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
	"github.com/streamcoder/divans/types"
)

type driverState uint8

const (
	stBegin driverState = iota
	stLiteral
	stDict
	stCopy
	stBlockSwitchLiteral
	stBlockSwitchCommand
	stBlockSwitchDistance
	stPredictionMode
	stPopulateRingBuffer
	stDivansSuccess
	stEncodedShutdownNode
	stShutdownCoder
	stCoderBufferDrain
	stWriteChecksum
)

// checksumTrailer is the sanity-check trailer an encoder's Flush writes
// after the arithmetic coder closes. It is not an integrity MAC. The
// decoder reaches DivansSuccess as soon as it reads the end-of-stream
// nibble and does not itself consume or validate this trailer;
// verifying it is left to the caller comparing the tail of the
// compressed stream.
var checksumTrailer = [8]byte{'~', 'd', 'i', 'v', 'a', 'n', 's', '~'}

// VerifyChecksumTrailer checks that a compressed stream ends with the
// literal trailer Flush writes. A decoder that reached success on a
// stream whose tail does not verify must treat the stream as corrupt.
func VerifyChecksumTrailer(compressed []byte) error {
	if len(compressed) < len(checksumTrailer) {
		return divans.ErrChecksumMismatch
	}
	tail := compressed[len(compressed)-len(checksumTrailer):]
	for i := range checksumTrailer {
		if tail[i] != checksumTrailer[i] {
			return divans.ErrChecksumMismatch
		}
	}
	return nil
}

// OneCommandOutcome is the result of one call to
// Codec.EncodeOrDecodeOneCommand.
type OneCommandOutcome int

const (
	// Advance indicates the current command finished; the caller
	// should move to the next command (encode) or expect another
	// command to be decoded next.
	Advance OneCommandOutcome = iota
	// BufferExhausted indicates the call paused or terminated; the
	// accompanying status.Status says why.
	BufferExhausted
)

// Option configures a Codec constructed by NewEncoder or NewDecoder.
type Option func(*codecOptions)

type codecOptions struct {
	queueCapacity  int
	ringBufferSize uint32
	literalSpeed   probability.Speed
}

func defaultOptions() codecOptions {
	return codecOptions{
		queueCapacity:  4096,
		ringBufferSize: 1 << 20,
		literalSpeed:   probability.Med,
	}
}

// WithQueueCapacity sets the arithmetic coder's internal byte queue
// capacity. It must be large enough to hold one command's worth of
// coded bytes between Begin-state drains: a decoder starving on a
// command whose coded form exceeds the queue capacity fails rather
// than livelock.
func WithQueueCapacity(n int) Option {
	return func(o *codecOptions) { o.queueCapacity = n }
}

// WithRingBufferSize sets the history window Copy commands can
// reference by distance.
func WithRingBufferSize(n uint32) Option {
	return func(o *codecOptions) { o.ringBufferSize = n }
}

// WithLiteralAdaptationSpeed overrides the default adaptation speed
// used for literal byte models.
func WithLiteralAdaptationSpeed(s probability.Speed) Option {
	return func(o *codecOptions) { o.literalSpeed = s }
}

// Codec is the command-stream driver. Construct one with NewEncoder or
// NewDecoder; both share this type, differing only in which concrete
// rangecoding.Coder backs them and whether ring-buffer replay delivers
// bytes to the caller (decode) or merely updates context state
// (encode).
type Codec struct {
	coder    *rangecoding.Coder
	alloc    *alloc.Allocator
	decoding bool

	bk      *bookkeeper
	recoder *ringRecoder

	literalProbs   *literal.Probs
	literalSpeed   probability.Speed
	blockLitProbs  *blocktype.Probs
	blockCmdProbs  *blocktype.Probs
	blockDistProbs *blocktype.Probs
	predModeProbs  *predmode.Probs

	state       driverState
	pendingCmd  command.Command
	checksumLen int

	// Rollback state for decode-side starvation: the coder and the
	// command-type model as they were when the current command's decode
	// began at Begin.
	cmdCheckpoint    rangecoding.Checkpoint
	savedCommandType probability.AdaptiveCDF16
}

func build(coder *rangecoding.Coder, decoding bool, a *alloc.Allocator, o codecOptions) *Codec {
	return &Codec{
		coder:          coder,
		alloc:          a,
		decoding:       decoding,
		bk:             newBookkeeper(),
		recoder:        newRingRecoder(o.ringBufferSize),
		literalProbs:   literal.NewProbs(),
		literalSpeed:   o.literalSpeed,
		blockLitProbs:  blocktype.NewProbs(),
		blockCmdProbs:  blocktype.NewProbs(),
		blockDistProbs: blocktype.NewProbs(),
		predModeProbs:  predmode.NewProbs(),
		state:          stBegin,
	}
}

// NewEncoder returns a Codec that encodes a supplied command stream
// into a compressed byte stream.
func NewEncoder(a *alloc.Allocator, opts ...Option) *Codec {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return build(rangecoding.NewEncoderCoder(o.queueCapacity), false, a, o)
}

// NewDecoder returns a Codec that decodes a compressed byte stream back
// into the original bytes.
func NewDecoder(a *alloc.Allocator, opts ...Option) *Codec {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return build(rangecoding.NewDecoderCoder(o.queueCapacity), true, a, o)
}

// Free releases any allocator-held memory this Codec still owns (a
// literal buffer from an in-flight decode that never completed).
func (c *Codec) Free() {
	if c.state == stPopulateRingBuffer && c.pendingCmd.Kind == types.CommandLiteral && c.decoding {
		c.alloc.FreeCell(c.pendingCmd.Literal.Data)
	}
}

// EncodeOrDecode drives the command loop to completion or exhaustion.
// On an encoder, commands/cmdOff supply the commands to encode, input
// is unused, and output receives compressed bytes. On a decoder, input
// supplies compressed bytes, commands/cmdOff are unused, and output
// receives the original decompressed bytes.
func (c *Codec) EncodeOrDecode(input []byte, inOff *int, output []byte, outOff *int, commands []command.Command, cmdOff *int) status.Status {
	for {
		var cmd *command.Command
		if c.coder.IsEncoding() {
			if *cmdOff >= len(commands) {
				return status.NeedsMoreInput
			}
			cmd = &commands[*cmdOff]
		} else {
			cmd = &command.Command{}
		}
		outcome, st := c.EncodeOrDecodeOneCommand(input, inOff, output, outOff, cmd, false)
		switch outcome {
		case Advance:
			if c.coder.IsEncoding() {
				*cmdOff++
			}
		case BufferExhausted:
			return st
		}
	}
}

// EncodeOrDecodeOneCommand advances the driver through exactly one
// command's worth of work, or as much of it as the supplied buffers
// allow. isEnd is set only by Flush, to encode the end-of-stream
// nibble; ordinary callers always pass false.
func (c *Codec) EncodeOrDecodeOneCommand(input []byte, inOff *int, output []byte, outOff *int, cmd *command.Command, isEnd bool) (OneCommandOutcome, status.Status) {
	for {
		switch c.state {
		case stEncodedShutdownNode, stShutdownCoder, stCoderBufferDrain, stWriteChecksum:
			// Not allowed to encode or decode additional commands once
			// flush has started.
			return BufferExhausted, status.Failure

		case stDivansSuccess:
			return BufferExhausted, status.Success

		case stBegin:
			if st := c.coder.DrainOrFillInternalBuffer(input, inOff, output, outOff); st != status.Success {
				return BufferExhausted, st
			}
			if c.decoding {
				c.cmdCheckpoint = c.coder.Checkpoint()
				c.savedCommandType = *c.bk.commandType
			}
			nibble := command.TypeToNibble(cmd, isEnd)
			c.coder.Nibble(&nibble, c.bk.commandType, probability.Rocket)
			if c.decoding && c.coder.Starved() {
				return BufferExhausted, c.rollbackStarved()
			}
			kind, end, ok := command.KindFromNibble(nibble)
			if !ok {
				return BufferExhausted, status.Failure
			}
			if end {
				c.state = stDivansSuccess
				continue
			}
			c.pendingCmd = command.Command{Kind: kind}
			if c.coder.IsEncoding() {
				copyPayload(&c.pendingCmd, cmd)
			}
			switch kind {
			case types.CommandCopy:
				c.bk.obsCopyState()
				c.state = stCopy
			case types.CommandDict:
				c.bk.obsDictState()
				c.state = stDict
			case types.CommandLiteral:
				c.bk.obsLiteralState()
				c.state = stLiteral
			case types.CommandBlockSwitchLiteral:
				c.state = stBlockSwitchLiteral
			case types.CommandBlockSwitchCommand:
				c.state = stBlockSwitchCommand
			case types.CommandBlockSwitchDistance:
				c.state = stBlockSwitchDistance
			case types.CommandPredictionMode:
				c.state = stPredictionMode
			}
			continue

		case stCopy:
			copycoder.EncodeOrDecode(c.coder, &c.pendingCmd.Copy)
			if c.decoding && c.coder.Starved() {
				return BufferExhausted, c.rollbackStarved()
			}
			c.bk.obsDistance(&c.pendingCmd.Copy)
			c.state = stPopulateRingBuffer
			continue

		case stDict:
			dict.EncodeOrDecode(c.coder, &c.pendingCmd.Dict)
			if c.decoding && c.coder.Starved() {
				return BufferExhausted, c.rollbackStarved()
			}
			c.state = stPopulateRingBuffer
			continue

		case stLiteral:
			ctx := literal.ContextFromLast8(c.bk.last8Literals)
			var savedHi, savedLo probability.AdaptiveCDF16
			if c.decoding {
				savedHi = *c.literalProbs.Hi[ctx]
				savedLo = *c.literalProbs.Lo[ctx]
			}
			literal.EncodeOrDecode(c.coder, &c.pendingCmd.Literal, c.literalProbs, ctx, c.literalSpeed, c.alloc)
			if c.decoding && c.coder.Starved() {
				if c.pendingCmd.Literal.Data != nil {
					c.alloc.FreeCell(c.pendingCmd.Literal.Data)
					c.pendingCmd.Literal.Data = nil
				}
				*c.literalProbs.Hi[ctx] = savedHi
				*c.literalProbs.Lo[ctx] = savedLo
				return BufferExhausted, c.rollbackStarved()
			}
			c.state = stPopulateRingBuffer
			continue

		case stBlockSwitchLiteral:
			var savedHi, savedLo probability.AdaptiveCDF16
			if c.decoding {
				savedHi = *c.blockLitProbs.Hi
				savedLo = *c.blockLitProbs.Lo
			}
			blocktype.EncodeOrDecodeLiteral(c.coder, &c.pendingCmd.BlockSwitchLiteral, c.blockLitProbs, probability.Rocket)
			if c.decoding && c.coder.Starved() {
				*c.blockLitProbs.Hi = savedHi
				*c.blockLitProbs.Lo = savedLo
				return BufferExhausted, c.rollbackStarved()
			}
			c.bk.obsBtypeLiteral(c.pendingCmd.BlockSwitchLiteral.BlockType, c.pendingCmd.BlockSwitchLiteral.Stride)
			c.state = stBegin
			return Advance, status.Success

		case stBlockSwitchCommand:
			var savedHi, savedLo probability.AdaptiveCDF16
			if c.decoding {
				savedHi = *c.blockCmdProbs.Hi
				savedLo = *c.blockCmdProbs.Lo
			}
			blocktype.EncodeOrDecode(c.coder, &c.pendingCmd.BlockSwitchCommand, c.blockCmdProbs, probability.Rocket)
			if c.decoding && c.coder.Starved() {
				*c.blockCmdProbs.Hi = savedHi
				*c.blockCmdProbs.Lo = savedLo
				return BufferExhausted, c.rollbackStarved()
			}
			c.bk.obsBtypeCommand(c.pendingCmd.BlockSwitchCommand.BlockType)
			c.state = stBegin
			return Advance, status.Success

		case stBlockSwitchDistance:
			var savedHi, savedLo probability.AdaptiveCDF16
			if c.decoding {
				savedHi = *c.blockDistProbs.Hi
				savedLo = *c.blockDistProbs.Lo
			}
			blocktype.EncodeOrDecode(c.coder, &c.pendingCmd.BlockSwitchDistance, c.blockDistProbs, probability.Rocket)
			if c.decoding && c.coder.Starved() {
				*c.blockDistProbs.Hi = savedHi
				*c.blockDistProbs.Lo = savedLo
				return BufferExhausted, c.rollbackStarved()
			}
			c.bk.obsBtypeDistance(c.pendingCmd.BlockSwitchDistance.BlockType)
			c.state = stBegin
			return Advance, status.Success

		case stPredictionMode:
			var savedMode probability.AdaptiveCDF16
			if c.decoding {
				savedMode = *c.predModeProbs.Mode
			}
			predmode.EncodeOrDecode(c.coder, &c.pendingCmd.PredictionMode, c.predModeProbs, probability.Rocket)
			if c.decoding && c.coder.Starved() {
				*c.predModeProbs.Mode = savedMode
				return BufferExhausted, c.rollbackStarved()
			}
			c.state = stBegin
			return Advance, status.Success

		case stPopulateRingBuffer:
			st := c.recoder.encodeCmd(&c.pendingCmd, output, outOff, c.decoding)
			switch st {
			case status.NeedsMoreOutput:
				// Only reachable when decoding: encoding never asks the
				// recoder to deliver bytes, so it never stalls here.
				return BufferExhausted, status.NeedsMoreOutput
			case status.Failure:
				return BufferExhausted, status.Failure
			case status.Success:
				c.bk.commandCount++
				c.bk.decodeByteCount = uint32(c.recoder.numBytesEncoded())
				c.bk.setLast8(c.recoder.last8())
				if c.pendingCmd.Kind == types.CommandLiteral && c.decoding {
					c.alloc.FreeCell(c.pendingCmd.Literal.Data)
				}
				c.state = stBegin
				return Advance, status.Success
			}
		}
	}
}

// rollbackStarved undoes a partially decoded command after the coder
// ran out of queued bytes mid-decode: the coder and the command-type
// model return to the state captured at Begin and the driver re-enters
// Begin, so the next call retries the whole command once the caller
// supplies more input. A starved decode whose queue is already full
// can never complete (the command's coded form exceeds the queue
// capacity) and is fatal instead.
func (c *Codec) rollbackStarved() status.Status {
	c.coder.Rollback(c.cmdCheckpoint)
	*c.bk.commandType = c.savedCommandType
	c.state = stBegin
	if c.coder.QueueFull() {
		return status.Failure
	}
	return status.NeedsMoreInput
}

func copyPayload(dst, src *command.Command) {
	switch dst.Kind {
	case types.CommandCopy:
		dst.Copy = src.Copy
	case types.CommandDict:
		dst.Dict = src.Dict
	case types.CommandLiteral:
		dst.Literal = src.Literal
	case types.CommandBlockSwitchLiteral:
		dst.BlockSwitchLiteral = src.BlockSwitchLiteral
	case types.CommandBlockSwitchCommand:
		dst.BlockSwitchCommand = src.BlockSwitchCommand
	case types.CommandBlockSwitchDistance:
		dst.BlockSwitchDistance = src.BlockSwitchDistance
	case types.CommandPredictionMode:
		dst.PredictionMode = src.PredictionMode
	}
}

// Flush finalizes an encoder: it emits the end-of-stream nibble, drains
// and closes the arithmetic coder, and writes the literal trailer.
// Idempotent once DivansSuccess is reached.
func (c *Codec) Flush(output []byte, outOff *int) status.Status {
	for {
		switch c.state {
		case stBegin:
			var unused int
			nop := command.Command{}
			_, st := c.EncodeOrDecodeOneCommand(nil, &unused, output, outOff, &nop, true)
			if st != status.Success {
				return st
			}
			c.state = stEncodedShutdownNode

		case stEncodedShutdownNode:
			var unused int
			if st := c.coder.DrainOrFillInternalBuffer(nil, &unused, output, outOff); st != status.Success {
				return st
			}
			c.state = stShutdownCoder

		case stShutdownCoder:
			c.coder.Close()
			c.state = stCoderBufferDrain

		case stCoderBufferDrain:
			var unused int
			if st := c.coder.DrainOrFillInternalBuffer(nil, &unused, output, outOff); st != status.Success {
				return st
			}
			c.state = stWriteChecksum
			c.checksumLen = 0

		case stWriteChecksum:
			bytesRemaining := len(output) - *outOff
			bytesNeeded := len(checksumTrailer) - c.checksumLen
			n := bytesNeeded
			if bytesRemaining < n {
				n = bytesRemaining
			}
			for i := 0; i < n; i++ {
				output[*outOff+i] = checksumTrailer[c.checksumLen+i]
			}
			*outOff += n
			c.checksumLen += n
			if bytesNeeded <= bytesRemaining {
				c.state = stDivansSuccess
				return status.Success
			}
			return status.NeedsMoreOutput

		case stDivansSuccess:
			return status.Success

		default:
			// Not allowed to flush if the previous command was only
			// partially processed.
			return status.Failure
		}
	}
}
