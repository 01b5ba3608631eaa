package dict

import (
	"testing"

	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
)

func TestEncodeOrDecodeRoundTrip(t *testing.T) {
	cases := []command.DictCommand{
		{WordID: 0, TransformID: 0, FinalSize: 0},
		{WordID: 12345, TransformID: 7, FinalSize: 512},
		{WordID: MaxWordID - 1, TransformID: MaxTransformID - 1, FinalSize: MaxFinalSize - 1},
	}

	enc := rangecoding.NewEncoderCoder(4096)
	for _, dc := range cases {
		dc := dc
		if st := EncodeOrDecode(enc, &dc); st != status.Success {
			t.Fatalf("encode: %v", st)
		}
	}
	enc.Close()

	var buf []byte
	for {
		var off int
		chunk := make([]byte, 64)
		st := enc.DrainOrFillInternalBuffer(nil, &off, chunk, &off)
		buf = append(buf, chunk[:off]...)
		if st == status.Success {
			break
		}
	}

	dec := rangecoding.NewDecoderCoder(4096)
	var inOff int
	if st := dec.DrainOrFillInternalBuffer(buf, &inOff, nil, &inOff); st != status.Success {
		t.Fatalf("fill: %v", st)
	}
	for i, want := range cases {
		var got command.DictCommand
		if st := EncodeOrDecode(dec, &got); st != status.Success {
			t.Fatalf("decode %d: %v", i, st)
		}
		if got != want {
			t.Fatalf("case %d: got %+v, want %+v", i, got, want)
		}
	}
}
