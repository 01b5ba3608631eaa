package literal

import (
	"bytes"
	"testing"

	"github.com/streamcoder/divans/alloc"
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/probability"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
)

func TestEncodeOrDecodeRoundTrip(t *testing.T) {
	runs := [][]byte{
		[]byte(""),
		[]byte("A"),
		[]byte("hello, world"),
		bytes.Repeat([]byte{0xAB}, 300),
	}

	a := alloc.New()
	probs := NewProbs()
	enc := rangecoding.NewEncoderCoder(8192)
	for _, data := range runs {
		lc := command.LiteralCommand{Data: data}
		ctx := ContextFromLast8(0)
		if st := EncodeOrDecode(enc, &lc, probs, ctx, probability.Med, a); st != status.Success {
			t.Fatalf("encode: %v", st)
		}
	}
	enc.Close()

	var buf []byte
	for {
		var off int
		chunk := make([]byte, 256)
		st := enc.DrainOrFillInternalBuffer(nil, &off, chunk, &off)
		buf = append(buf, chunk[:off]...)
		if st == status.Success {
			break
		}
	}

	dprobs := NewProbs()
	dec := rangecoding.NewDecoderCoder(8192)
	var inOff int
	if st := dec.DrainOrFillInternalBuffer(buf, &inOff, nil, &inOff); st != status.Success {
		t.Fatalf("fill: %v", st)
	}
	for i, want := range runs {
		var lc command.LiteralCommand
		ctx := ContextFromLast8(0)
		if st := EncodeOrDecode(dec, &lc, dprobs, ctx, probability.Med, a); st != status.Success {
			t.Fatalf("decode %d: %v", i, st)
		}
		if !bytes.Equal(lc.Data, want) {
			t.Fatalf("case %d: got %q, want %q", i, lc.Data, want)
		}
		a.FreeCell(lc.Data)
	}
}

func TestContextFromLast8Bounds(t *testing.T) {
	for last8 := uint64(0); last8 < 1<<16; last8 += 997 {
		ctx := ContextFromLast8(last8)
		if ctx < 0 || ctx >= NumContexts {
			t.Fatalf("ContextFromLast8(%d) = %d out of [0, %d)", last8, ctx, NumContexts)
		}
	}
}
