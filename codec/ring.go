package codec

import (
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/status"
	"github.com/streamcoder/divans/types"
)

// ringRecoder replays a committed Command into the decompressed byte
// stream, maintaining a circular history buffer so Copy commands can
// reference recently produced bytes by distance.
//
// Dict commands are replayed as FinalSize zero bytes: the static
// dictionary's word contents live with the caller, so there is nothing
// real to copy in here.
type ringRecoder struct {
	ring []byte
	pos  uint32 // next write index, mod len(ring)
	total uint64

	pending *pendingReplay
}

type pendingReplay struct {
	kind types.CommandKind

	// Literal
	data   []byte
	offset int

	// Copy
	distance  uint32
	remaining uint32

	// Dict: replayed as zero-filled bytes of length `remaining`.
}

func newRingRecoder(size uint32) *ringRecoder {
	if size == 0 {
		size = 1
	}
	return &ringRecoder{ring: make([]byte, size)}
}

// numBytesEncoded reports the total number of decompressed bytes
// produced so far across the recoder's lifetime.
func (r *ringRecoder) numBytesEncoded() uint64 {
	return r.total
}

// last8 returns the 8 most recently produced bytes, oldest first,
// zero-padded if fewer than 8 have been produced yet.
func (r *ringRecoder) last8() [8]byte {
	var out [8]byte
	n := len(r.ring)
	for i := 0; i < 8; i++ {
		back := uint32(8 - i)
		if uint64(back) > r.total {
			continue
		}
		idx := (int(r.pos) - int(back)%n + n) % n
		out[i] = r.ring[idx]
	}
	return out
}

func (r *ringRecoder) sourceByte(distance uint32) (byte, bool) {
	if distance == 0 || uint64(distance) > r.total || int(distance) > len(r.ring) {
		return 0, false
	}
	n := len(r.ring)
	idx := (int(r.pos) - int(distance)%n + n) % n
	return r.ring[idx], true
}

func (r *ringRecoder) appendByte(b byte) {
	n := uint32(len(r.ring))
	r.ring[r.pos] = b
	r.pos = (r.pos + 1) % n
	r.total++
}

func (r *ringRecoder) beginPending(cmd *command.Command) {
	p := &pendingReplay{kind: cmd.Kind}
	switch cmd.Kind {
	case types.CommandLiteral:
		p.data = cmd.Literal.Data
	case types.CommandCopy:
		p.distance = cmd.Copy.Distance
		p.remaining = cmd.Copy.NumBytes
	case types.CommandDict:
		p.remaining = cmd.Dict.FinalSize
	}
	r.pending = p
}

// encodeCmd replays cmd's effect on the ring buffer, optionally
// delivering the produced bytes into out starting at *outOff. It
// returns status.NeedsMoreOutput (preserving replay progress for the
// next call) if wantOutput is true and out fills before the command is
// fully replayed, and status.Success once the command is fully
// replayed, clearing any pending state.
func (r *ringRecoder) encodeCmd(cmd *command.Command, out []byte, outOff *int, wantOutput bool) status.Status {
	if r.pending == nil {
		switch cmd.Kind {
		case types.CommandBlockSwitchLiteral, types.CommandBlockSwitchCommand,
			types.CommandBlockSwitchDistance, types.CommandPredictionMode:
			// No ring-buffer effect; these only change context selection.
			return status.Success
		}
		r.beginPending(cmd)
	}
	p := r.pending
	for {
		var more bool
		switch p.kind {
		case types.CommandLiteral:
			more = p.offset < len(p.data)
		case types.CommandCopy, types.CommandDict:
			more = p.remaining > 0
		}
		if !more {
			r.pending = nil
			return status.Success
		}
		if wantOutput && *outOff >= len(out) {
			return status.NeedsMoreOutput
		}
		var b byte
		switch p.kind {
		case types.CommandLiteral:
			b = p.data[p.offset]
			p.offset++
		case types.CommandCopy:
			var ok bool
			b, ok = r.sourceByte(p.distance)
			if !ok {
				r.pending = nil
				return status.Failure
			}
			p.remaining--
		case types.CommandDict:
			b = 0
			p.remaining--
		}
		r.appendByte(b)
		if wantOutput {
			out[*outOff] = b
			*outOff++
		}
	}
}
