package rangecoding

import (
	"testing"

	"github.com/streamcoder/divans/probability"
	"github.com/streamcoder/divans/status"
)

// drainAll pulls every queued byte out of an encoding Coder into a growing
// buffer, the way codec.Codec's Begin-state drain loop does.
func drainAll(t *testing.T, c *Coder, buf []byte) []byte {
	t.Helper()
	for {
		var off int
		chunk := make([]byte, 64)
		st := c.DrainOrFillInternalBuffer(nil, &off, chunk, &off)
		buf = append(buf, chunk[:off]...)
		if st == status.Success {
			return buf
		}
	}
}

func TestCoderNibbleRoundTrip(t *testing.T) {
	symbols := []uint8{0, 1, 7, 8, 15, 3, 12}

	enc := NewEncoderCoder(256)
	if !enc.IsEncoding() {
		t.Fatal("NewEncoderCoder should report IsEncoding true")
	}
	cdf := probability.NewAdaptiveCDF16()
	for _, s := range symbols {
		sym := s
		enc.Nibble(&sym, cdf, probability.Med)
	}
	enc.Close()
	var buf []byte
	buf = drainAll(t, enc, buf)
	if len(buf) == 0 {
		t.Fatal("expected encoded output")
	}

	dec := NewDecoderCoder(256)
	if dec.IsEncoding() {
		t.Fatal("NewDecoderCoder should report IsEncoding false")
	}
	var off int
	if st := dec.DrainOrFillInternalBuffer(buf, &off, nil, &off); st != status.Success {
		t.Fatalf("fill: %v", st)
	}
	dcdf := probability.NewAdaptiveCDF16()
	for i, want := range symbols {
		var got uint8
		dec.Nibble(&got, dcdf, probability.Med)
		if got != want {
			t.Fatalf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

func TestCoderUniformRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 255, 1000, 1 << 20}
	const ft = 1 << 24

	enc := NewEncoderCoder(512)
	for _, v := range values {
		val := v
		enc.Uniform(&val, ft)
	}
	enc.Close()
	var buf []byte
	buf = drainAll(t, enc, buf)

	dec := NewDecoderCoder(512)
	var off int
	if st := dec.DrainOrFillInternalBuffer(buf, &off, nil, &off); st != status.Success {
		t.Fatalf("fill: %v", st)
	}
	for i, want := range values {
		var got uint32
		dec.Uniform(&got, ft)
		if got != want {
			t.Fatalf("value %d: got %d, want %d", i, got, want)
		}
	}
}

func TestCoderBitRoundTrip(t *testing.T) {
	bits := []int{1, 0, 0, 1, 1, 1, 0}

	enc := NewEncoderCoder(128)
	for _, b := range bits {
		v := b
		enc.Bit(&v, 1)
	}
	enc.Close()
	var buf []byte
	buf = drainAll(t, enc, buf)

	dec := NewDecoderCoder(128)
	var off int
	if st := dec.DrainOrFillInternalBuffer(buf, &off, nil, &off); st != status.Success {
		t.Fatalf("fill: %v", st)
	}
	for i, want := range bits {
		var got int
		dec.Bit(&got, 1)
		if got != want {
			t.Fatalf("bit %d: got %d, want %d", i, got, want)
		}
	}
}

func TestCoderClosedBeforeClose(t *testing.T) {
	enc := NewEncoderCoder(16)
	if enc.Closed() {
		t.Fatal("fresh encoder Coder should not be closed")
	}
	enc.Close()
	if !enc.Closed() {
		t.Fatal("Coder should report closed after Close")
	}
}

func TestDecoderCheckpointRollbackOnStarvation(t *testing.T) {
	symbols := []uint8{5, 0, 15, 9, 2, 11, 7}

	enc := NewEncoderCoder(256)
	ecdf := probability.NewAdaptiveCDF16()
	for _, s := range symbols {
		sym := s
		enc.Nibble(&sym, ecdf, probability.Med)
	}
	enc.Close()
	var buf []byte
	buf = drainAll(t, enc, buf)

	// Feed the compressed bytes one at a time. Before each decode
	// attempt, checkpoint; on starvation, roll back and retry with one
	// more byte, the way the codec driver does. Once the whole stream
	// is fed, reads past its end are the range coder's normal tail
	// behavior and the decode is accepted.
	dec := NewDecoderCoder(256)
	dcdf := probability.NewAdaptiveCDF16()
	fed := 0
	for i, want := range symbols {
		for {
			saved := *dcdf
			cp := dec.Checkpoint()
			var got uint8
			dec.Nibble(&got, dcdf, probability.Med)
			if !dec.Starved() || fed >= len(buf) {
				if got != want {
					t.Fatalf("symbol %d: got %d, want %d", i, got, want)
				}
				break
			}
			dec.Rollback(cp)
			*dcdf = saved
			var off int
			dec.DrainOrFillInternalBuffer(buf[fed:fed+1], &off, nil, &off)
			fed++
		}
	}
}
