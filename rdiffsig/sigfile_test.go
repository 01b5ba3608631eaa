package rdiffsig

import (
	"bytes"
	"errors"
	"testing"

	"github.com/streamcoder/divans"
	"github.com/streamcoder/divans/types"
)

func serializeAll(t *testing.T, f *SigFile, chunk int) []byte {
	t.Helper()
	out := make([]byte, f.SerializedSize())
	inputOffset, outputOffset := 0, 0
	for {
		limit := outputOffset + chunk
		if limit > len(out) {
			limit = len(out)
		}
		done := f.Serialize(&inputOffset, out[:limit], &outputOffset)
		if done {
			break
		}
		if outputOffset == len(out) {
			t.Fatal("Serialize never reported completion")
		}
	}
	if outputOffset != len(out) {
		t.Fatalf("serialized %d bytes, want %d", outputOffset, len(out))
	}
	return out
}

func TestSerializeHeaderAndRecordLayout(t *testing.T) {
	buf := []byte("0123456789") // blocks of 4, 4, 2
	f, err := New(4, 8, types.HashMD4, buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(f.Signatures()); got != 3 {
		t.Fatalf("got %d signatures, want 3", got)
	}
	onDisk := serializeAll(t, f, len(buf)+1024)
	wantHeader := []byte{0x72, 0x73, 0x01, 0x36, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x08}
	if !bytes.Equal(onDisk[:12], wantHeader) {
		t.Fatalf("header % x, want % x", onDisk[:12], wantHeader)
	}
	if len(onDisk) != 12+3*12 {
		t.Fatalf("serialized size %d, want %d", len(onDisk), 12+3*12)
	}
	for i, sig := range f.Signatures() {
		record := onDisk[12+i*12 : 12+(i+1)*12]
		if got := bytesToU32(record); got != sig.CRC32 {
			t.Fatalf("record %d crc %08x, want %08x", i, got, sig.CRC32)
		}
		if !bytes.Equal(record[4:], f.signatures[i].CryptoSig.Slice()) {
			t.Fatalf("record %d crypto sig mismatch", i)
		}
	}
}

func TestBlake5Magic(t *testing.T) {
	f, err := New(4, 16, types.HashBLAKE5, []byte("abcdefgh"))
	if err != nil {
		t.Fatal(err)
	}
	onDisk := serializeAll(t, f, 1024)
	if !bytes.Equal(onDisk[:4], []byte{0x72, 0x73, 0x01, 0x37}) {
		t.Fatalf("magic % x", onDisk[:4])
	}
	got, _, err := Deserialize(onDisk)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != types.HashBLAKE5 {
		t.Fatalf("kind %v, want BLAKE5", got.Kind())
	}
}

func sigFilesEqual(a, b *SigFile) bool {
	if a.BlockSize() != b.BlockSize() || a.SigSize() != b.SigSize() || a.Kind() != b.Kind() {
		return false
	}
	if len(a.Signatures()) != len(b.Signatures()) {
		return false
	}
	for i := range a.signatures {
		if a.signatures[i].CRC32 != b.signatures[i].CRC32 {
			return false
		}
		if !bytes.Equal(a.signatures[i].CryptoSig.Slice(), b.signatures[i].CryptoSig.Slice()) {
			return false
		}
	}
	return true
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	for _, sigSize := range []int{2, 3, 4, 5, 6, 7, 8, 12, 16} {
		f, err := New(16, sigSize, types.HashMD4, pseudoRandomBytes(100, uint32(sigSize)))
		if err != nil {
			t.Fatalf("sig size %d: %v", sigSize, err)
		}
		onDisk := serializeAll(t, f, 1024)
		got, hint, err := Deserialize(onDisk)
		if err != nil {
			t.Fatalf("sig size %d: hint %d, %v", sigSize, hint, err)
		}
		if !sigFilesEqual(f, got) {
			t.Fatalf("sig size %d: round trip mismatch", sigSize)
		}
	}
}

func TestStreamingSerializeMatchesOneShot(t *testing.T) {
	f, err := New(8, 8, types.HashMD4, pseudoRandomBytes(70, 7))
	if err != nil {
		t.Fatal(err)
	}
	oneShot := serializeAll(t, f, f.SerializedSize())
	for _, chunk := range []int{1, 2, 3, 5, 11} {
		if got := serializeAll(t, f, chunk); !bytes.Equal(got, oneShot) {
			t.Fatalf("chunk size %d diverged from one-shot serialize", chunk)
		}
	}
}

func TestStreamingDeserializeMatchesOneShot(t *testing.T) {
	f, err := New(8, 12, types.HashBLAKE5, pseudoRandomBytes(90, 3))
	if err != nil {
		t.Fatal(err)
	}
	onDisk := serializeAll(t, f, 1024)
	for _, chunk := range []int{1, 2, 7, 13, len(onDisk)} {
		var d Deserializer
		for off := 0; off < len(onDisk); off += chunk {
			end := off + chunk
			if end > len(onDisk) {
				end = len(onDisk)
			}
			if err := d.Push(onDisk[off:end]); err != nil {
				t.Fatalf("chunk size %d: %v", chunk, err)
			}
		}
		got, hint, err := d.Finish()
		if err != nil {
			t.Fatalf("chunk size %d: hint %d, %v", chunk, hint, err)
		}
		if !sigFilesEqual(f, got) {
			t.Fatalf("chunk size %d: streaming deserialize mismatch", chunk)
		}
	}
}

func TestDeserializeErrors(t *testing.T) {
	f, err := New(4, 8, types.HashMD4, []byte("0123456789"))
	if err != nil {
		t.Fatal(err)
	}
	good := serializeAll(t, f, 1024)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte{}, good...)
		bad[0] = 0x00
		_, hint, err := Deserialize(bad)
		if !errors.Is(err, divans.ErrBadMagic) || hint != 0 {
			t.Fatalf("got hint %d, err %v", hint, err)
		}
	})
	t.Run("unsupported sig size", func(t *testing.T) {
		bad := append([]byte{}, good...)
		bad[11] = 9
		_, hint, err := Deserialize(bad)
		if !errors.Is(err, divans.ErrWrongSigSize) || hint != 9 {
			t.Fatalf("got hint %d, err %v", hint, err)
		}
	})
	t.Run("truncated payload", func(t *testing.T) {
		bad := good[:len(good)-5]
		_, hint, err := Deserialize(bad)
		if !errors.Is(err, divans.ErrTruncatedSignature) || hint != len(bad)-12 {
			t.Fatalf("got hint %d, err %v", hint, err)
		}
	})
	t.Run("short header", func(t *testing.T) {
		_, _, err := Deserialize(good[:7])
		if !errors.Is(err, divans.ErrTruncatedSignature) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("streaming truncated record", func(t *testing.T) {
		var d Deserializer
		if err := d.Push(good[:len(good)-5]); err != nil {
			t.Fatal(err)
		}
		if _, _, err := d.Finish(); !errors.Is(err, divans.ErrTruncatedSignature) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestNewRejectsBadSizes(t *testing.T) {
	if _, err := New(4, 9, types.HashMD4, []byte("abcd")); !errors.Is(err, divans.ErrWrongSigSize) {
		t.Fatalf("size 9: got %v", err)
	}
	if _, err := New(4, 32, types.HashMD4, []byte("abcd")); !errors.Is(err, divans.ErrWrongSigSize) {
		t.Fatalf("size 32 exceeds an MD4 digest: got %v", err)
	}
	if _, err := New(4, 32, types.HashBLAKE5, []byte("abcd")); err != nil {
		t.Fatalf("size 32 fits a BLAKE5 digest: got %v", err)
	}
}

func TestSigHintLastWriterWins(t *testing.T) {
	// Two identical blocks collide on the rolling checksum; the hint
	// keeps only the later index.
	f, err := New(4, 8, types.HashMD4, []byte("samesame"))
	if err != nil {
		t.Fatal(err)
	}
	hint := f.CreateSigHint()
	index, ok := hint.Lookup(f.Signatures()[0].CRC32)
	if !ok || index != 1 {
		t.Fatalf("got index %d ok %v, want index 1", index, ok)
	}
}
