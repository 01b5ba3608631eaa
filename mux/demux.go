package mux

import "github.com/streamcoder/divans/alloc"

type deserializeState uint8

const (
	dsNone deserializeState = iota
	dsHeader0
	dsHeader1
	dsSome
)

// Demux is the decode-side demultiplexer: feed it the muxed byte
// stream via Deserialize, then read each stream's accumulated payload
// with Peek/Consume.
type Demux struct {
	alloc *alloc.Allocator

	streams [NumStreams]streamBuf

	state       deserializeState
	pendingID   StreamID
	pendingLSB  byte
	pendingLeft uint32

	eof eofState
}

// NewDemux returns an empty Demux backed by a.
func NewDemux(a *alloc.Allocator) *Demux {
	return &Demux{alloc: a}
}

func (d *Demux) pushData(id StreamID, data []byte) {
	s := &d.streams[id]
	if len(s.data)-s.writeCursor < len(data) {
		grown := growBuffer(d.alloc, s, len(data))
		*s = grown
	}
	copy(s.data[s.writeCursor:], data)
	s.writeCursor += len(data)
}

// growBuffer grows s to hold n more bytes, reusing the same
// compaction-or-reallocate policy Mux.prepPush uses on the encode
// side.
func growBuffer(a *alloc.Allocator, s *streamBuf, n int) streamBuf {
	unread := s.writeCursor - s.readCursor
	if len(s.data) >= unread+n+MaxHeaderSize &&
		(s.readCursor == s.writeCursor || (s.readCursor >= 16384 && s.readCursor > unread+MaxHeaderSize)) {
		copy(s.data[MaxHeaderSize:], s.data[s.readCursor:s.writeCursor])
		return streamBuf{data: s.data, readCursor: MaxHeaderSize, writeCursor: MaxHeaderSize + unread}
	}
	desired := MaxHeaderSize + n + unread
	size := 512
	for size < desired {
		size <<= 1
	}
	newBuf := a.AllocCell(size)
	copy(newBuf[MaxHeaderSize:], s.data[s.readCursor:s.writeCursor])
	if s.data != nil {
		a.FreeCell(s.data)
	}
	return streamBuf{data: newBuf, readCursor: MaxHeaderSize, writeCursor: MaxHeaderSize + unread}
}

// Deserialize feeds input into the demuxer, routing decoded payload
// bytes into their target streams' buffers, and returns the number of
// input bytes consumed. Safe to call with arbitrarily small chunks of
// input across repeated calls.
func (d *Demux) Deserialize(input []byte) int {
	consumed := 0
	for len(input) != 0 && d.eof != eofDone {
		switch d.state {
		case dsHeader0:
			d.state = dsHeader1
			d.pendingLSB = input[0]
			input = input[1:]
			consumed++

		case dsHeader1:
			count := uint32(d.pendingLSB) | uint32(input[0])<<8
			d.pendingLeft = count + 1
			d.state = dsSome
			input = input[1:]
			consumed++

		case dsSome:
			if int(d.pendingLeft) > len(input) {
				d.pushData(d.pendingID, input)
				d.pendingLeft -= uint32(len(input))
				consumed += len(input)
				return consumed
			}
			d.pushData(d.pendingID, input[:d.pendingLeft])
			input = input[d.pendingLeft:]
			consumed += int(d.pendingLeft)
			d.state = dsNone

		case dsNone:
			b := input[0]
			if b == EOFMarker[0] || b == EOFMarker[1] || b == EOFMarker[2] {
				if b == EOFMarker[0] || d.eof != eofRunning {
					n := d.deserializeEOF(input)
					return consumed + n
				}
			}
			id := StreamID(b & StreamIDMask)
			var count int
			var bytesToCopy uint32
			if b < 16 {
				if len(input) < 3 {
					d.state = dsHeader0
					d.pendingID = id
					input = input[1:]
					consumed++
					continue
				}
				count = 3
				bytesToCopy = (uint32(input[1]) | uint32(input[2])<<8) + 1
			} else {
				count = 1
				bytesToCopy = 1024 << ((b >> 4) << 1)
			}
			d.pendingID = id
			d.pendingLeft = bytesToCopy
			d.state = dsSome
			input = input[count:]
			consumed += count
		}
	}
	return consumed
}

func (d *Demux) deserializeEOF(input []byte) int {
	ret := 0
	if d.eof == eofRunning && input[0] == EOFMarker[0] {
		ret++
		input = input[1:]
		d.eof = eofStart
	}
	if len(input) == 0 {
		return ret
	}
	if d.eof == eofStart && input[0] == EOFMarker[1] {
		ret++
		input = input[1:]
		d.eof = eofMid
	}
	if len(input) == 0 {
		return ret
	}
	if d.eof == eofMid && input[0] == EOFMarker[2] {
		ret++
		d.eof = eofDone
	}
	return ret
}

// DataReady reports how many undelivered bytes stream id currently
// holds.
func (d *Demux) DataReady(id StreamID) int {
	s := &d.streams[id]
	return s.writeCursor - s.readCursor
}

// Peek returns stream id's undelivered bytes without consuming them.
func (d *Demux) Peek(id StreamID) []byte {
	s := &d.streams[id]
	return s.data[s.readCursor:s.writeCursor]
}

// Consume marks count bytes of stream id's undelivered payload as
// delivered.
func (d *Demux) Consume(id StreamID, count int) {
	d.streams[id].readCursor += count
}

// EncounteredEOF reports whether the three-byte EOF marker has been
// fully consumed.
func (d *Demux) EncounteredEOF() bool {
	return d.eof == eofDone
}

// IsEOF reports whether every stream's buffered payload has been
// consumed and the EOF marker has been seen.
func (d *Demux) IsEOF() bool {
	for i := range d.streams {
		if d.streams[i].readCursor != d.streams[i].writeCursor {
			return false
		}
	}
	return d.eof == eofDone
}

// Free releases every stream buffer's backing cell.
func (d *Demux) Free() {
	for i := range d.streams {
		if d.streams[i].data != nil {
			d.alloc.FreeCell(d.streams[i].data)
			d.streams[i].data = nil
		}
	}
}
