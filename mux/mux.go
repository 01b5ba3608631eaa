// Package mux implements the self-framing byte muxer/demuxer:
// interleaving NumStreams independent sub-streams into one byte
// channel with variable/fixed-size chunk headers, bounded per-stream
// flush lag, and a three-byte end-of-stream marker. Each stream keeps
// explicit read/write cursors over an alloc.Allocator cell so every
// operation is resumable mid-chunk.
package mux

import "github.com/streamcoder/divans/alloc"

// NumStreams is the number of sub-streams this mux interleaves. The
// low-nibble stream id field has room for more.
const NumStreams = 2

// StreamID identifies one of the NumStreams sub-streams.
type StreamID uint8

// StreamIDMask extracts the stream id from the low 4 bits of a mux
// header byte.
const StreamIDMask = 0x0F

// MaxHeaderSize is the largest header a single chunk can carry (a
// stream-id byte plus a 2-byte little-endian length-1 field).
const MaxHeaderSize = 3

// MaxFlushVariance bounds how far a stream's last-flush counter may
// trail the globally largest one before that stream is treated as
// lagging, and how far it may lead the globally smallest one and still
// be scheduled for a flush.
const MaxFlushVariance = 131073

// EOFMarker is the reserved three-byte sentinel written once, at the
// very end of a muxed stream.
var EOFMarker = [3]byte{0xFF, 0xFE, 0xFF}

func chunkSize(lastFlushed int, lagging bool) int {
	if lagging {
		return 16
	}
	if lastFlushed <= 1024 {
		return 4096
	}
	if lastFlushed <= 65536 {
		return 16384
	}
	return 65536
}

type headerKind uint8

const (
	headerVar headerKind = iota
	headerFixed
)

type muxHeader struct {
	kind headerKind
	var3 [3]byte
	var1 [1]byte
}

// getCode picks the chunk header and size for the next flush of
// stream sid given bytesToWrite available and whether that stream is
// currently lagging.
func getCode(sid StreamID, bytesToWrite int, lagging bool) (muxHeader, int) {
	if !lagging || bytesToWrite == 4096 || bytesToWrite == 16384 || bytesToWrite >= 65536 {
		if bytesToWrite < 4096 {
			return getCode(sid, bytesToWrite, true)
		}
		if bytesToWrite < 16384 {
			return muxHeader{kind: headerFixed, var1: [1]byte{byte(sid) | (1 << 4)}}, 4096
		}
		if bytesToWrite < 65536 {
			return muxHeader{kind: headerFixed, var1: [1]byte{byte(sid) | (2 << 4)}}, 16384
		}
		return muxHeader{kind: headerFixed, var1: [1]byte{byte(sid) | (3 << 4)}}, 65536
	}
	hdr := muxHeader{kind: headerVar}
	hdr.var3[0] = byte(sid)
	hdr.var3[1] = byte((bytesToWrite - 1) & 0xff)
	hdr.var3[2] = byte(((bytesToWrite - 1) >> 8) & 0xff)
	return hdr, bytesToWrite
}

func (h muxHeader) bytes() []byte {
	if h.kind == headerFixed {
		return h.var1[:]
	}
	return h.var3[:]
}

type eofState uint8

const (
	eofRunning eofState = iota
	eofStart
	eofMid
	eofDone
)

type streamBuf struct {
	data        []byte
	readCursor  int
	writeCursor int
}

// Mux is the encode-side multiplexer: callers push per-stream payload
// with Write, then pull interleaved framed bytes with Serialize (and
// finally SerializeClose to flush everything and append the EOF
// marker).
type Mux struct {
	alloc *alloc.Allocator

	streams [NumStreams]streamBuf

	lastFlush    [NumStreams]int
	bytesFlushed int

	curStream           StreamID
	curStreamBytesAvail int

	eof eofState
}

// New returns an empty Mux backed by a.
func New(a *alloc.Allocator) *Mux {
	return &Mux{alloc: a}
}

// Write appends data to stream id's pending buffer, growing it as
// needed. It never blocks; the bytes become visible to Serialize once
// enough has accumulated to cross a chunk boundary, or at
// SerializeClose.
func (m *Mux) Write(id StreamID, data []byte) {
	s := &m.streams[id]
	m.prepPush(s, len(data))
	copy(s.data[s.writeCursor:], data)
	s.writeCursor += len(data)
}

// prepPush ensures s.data has room for n more bytes past writeCursor,
// reserving MaxHeaderSize bytes before readCursor for an in-place
// header prepend.
func (m *Mux) prepPush(s *streamBuf, n int) {
	if len(s.data)-s.writeCursor >= n {
		return
	}
	unread := s.writeCursor - s.readCursor
	if len(s.data) >= unread+n+MaxHeaderSize &&
		(s.readCursor == s.writeCursor || (s.readCursor >= 16384 && s.readCursor > unread+MaxHeaderSize)) {
		copy(s.data[MaxHeaderSize:], s.data[s.readCursor:s.writeCursor])
		s.writeCursor = MaxHeaderSize + unread
		s.readCursor = MaxHeaderSize
		return
	}
	desired := MaxHeaderSize + n + unread
	size := 512
	for size < desired {
		size <<= 1
	}
	newBuf := m.alloc.AllocCell(size)
	copy(newBuf[MaxHeaderSize:], s.data[s.readCursor:s.writeCursor])
	if s.data != nil {
		m.alloc.FreeCell(s.data)
	}
	s.data = newBuf
	s.writeCursor = MaxHeaderSize + unread
	s.readCursor = MaxHeaderSize
}

// Free releases every stream buffer's backing cell.
func (m *Mux) Free() {
	for i := range m.streams {
		if m.streams[i].data != nil {
			m.alloc.FreeCell(m.streams[i].data)
			m.streams[i].data = nil
		}
	}
}

func (m *Mux) serializeLeftover(output []byte, outOff *int) {
	toCopy := m.curStreamBytesAvail
	if rem := len(output) - *outOff; rem < toCopy {
		toCopy = rem
	}
	s := &m.streams[m.curStream]
	copy(output[*outOff:], s.data[s.readCursor:s.readCursor+toCopy])
	s.readCursor += toCopy
	*outOff += toCopy
	m.curStreamBytesAvail -= toCopy
}

func (m *Mux) serializeStreamID(id StreamID, output []byte, outOff *int, lagging bool) {
	s := &m.streams[id]
	header, numBytes := getCode(id, s.writeCursor-s.readCursor, lagging)
	m.bytesFlushed += numBytes
	hdr := header.bytes()
	s.readCursor -= len(hdr)
	copy(s.data[s.readCursor:], hdr)
	numBytes += len(hdr)
	m.lastFlush[id] = m.bytesFlushed

	toWrite := numBytes
	if rem := len(output) - *outOff; rem < toWrite {
		toWrite = rem
	}
	copy(output[*outOff:], s.data[s.readCursor:s.readCursor+toWrite])
	s.readCursor += toWrite
	if s.readCursor == s.writeCursor {
		s.readCursor = MaxHeaderSize
		s.writeCursor = MaxHeaderSize
	}
	*outOff += toWrite
	if toWrite != numBytes {
		m.curStreamBytesAvail = numBytes - toWrite
		m.curStream = id
	}
}

// Serialize writes as many framed chunks as fit into output, honoring
// the lagging-stream flush policy, and returns the number of bytes
// written. Call it repeatedly as the caller drains output.
func (m *Mux) Serialize(output []byte) int {
	outOff := 0
	if m.curStreamBytesAvail != 0 {
		m.serializeLeftover(output, &outOff)
	}
	for outOff < len(output) {
		flushedAny := false
		minFlush, maxFlush := m.lastFlush[0], m.lastFlush[0]
		for _, lf := range m.lastFlush[1:] {
			if lf < minFlush {
				minFlush = lf
			}
			if lf > maxFlush {
				maxFlush = lf
			}
		}
		for i := 0; i < NumStreams; i++ {
			lagging := maxFlush > MaxFlushVariance+m.lastFlush[i]
			s := &m.streams[i]
			if s.writeCursor-s.readCursor >= chunkSize(m.lastFlush[i], lagging) && m.lastFlush[i] <= minFlush+MaxFlushVariance {
				flushedAny = true
				m.serializeStreamID(StreamID(i), output, &outOff, lagging)
				if m.curStreamBytesAvail != 0 {
					break
				}
			}
		}
		if !flushedAny {
			break
		}
	}
	return outOff
}

func (m *Mux) flushInternal(output []byte) int {
	outOff := 0
	if m.curStreamBytesAvail != 0 {
		m.serializeLeftover(output, &outOff)
	}
	for outOff < len(output) {
		flushedAny := false
		haveMin := false
		minFlush := 0
		for i := range m.streams {
			s := &m.streams[i]
			if s.readCursor == s.writeCursor {
				continue
			}
			if !haveMin || m.lastFlush[i] < minFlush {
				minFlush = m.lastFlush[i]
				haveMin = true
			}
		}
		for i := 0; i < NumStreams; i++ {
			if haveMin && m.lastFlush[i] > minFlush+MaxFlushVariance {
				continue
			}
			written := outOff
			s := &m.streams[i]
			if s.readCursor != s.writeCursor {
				m.serializeStreamID(StreamID(i), output, &written, true)
			}
			if written != outOff {
				flushedAny = true
			}
			outOff = written
			if m.curStreamBytesAvail != 0 {
				break
			}
		}
		if !flushedAny {
			break
		}
	}
	return outOff
}

// SerializeClose drains every stream, chunking each as a lagging stream
// and still skipping a stream whose last flush leads the smallest by
// more than MaxFlushVariance, and then emits as much of the three-byte
// EOF marker as fits, so the whole operation stays resumable. It returns the number
// of bytes written; call it again until WroteEOF reports true.
func (m *Mux) SerializeClose(output []byte) int {
	if m.eof == eofDone {
		return 0
	}
	ret := m.flushInternal(output)
	if len(output) == ret {
		return ret
	}
	if m.eof == eofRunning {
		output[ret] = EOFMarker[0]
		ret++
		m.eof = eofStart
	}
	if len(output) == ret {
		return ret
	}
	if m.eof == eofStart {
		output[ret] = EOFMarker[1]
		ret++
		m.eof = eofMid
	}
	if len(output) == ret {
		return ret
	}
	if m.eof == eofMid {
		output[ret] = EOFMarker[2]
		ret++
		m.eof = eofDone
	}
	return ret
}

// WroteEOF reports whether SerializeClose has fully emitted the EOF
// marker.
func (m *Mux) WroteEOF() bool {
	return m.eof == eofDone
}
