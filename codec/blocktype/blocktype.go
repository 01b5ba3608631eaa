// Package blocktype implements the three BlockSwitch command
// sub-coders (literal, command, distance context switches). Each
// carries a new block type, and the literal variant additionally
// carries a stride at which literal contexts rotate within the new
// block. Block types are coded as a nibble pair under an adaptive
// CDF16 pair that the caller supplies per switch kind; the
// context-selection policy the switches feed lives with the
// per-command encoders, not here.
package blocktype

import (
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/probability"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
)

// MaxStride bounds the uniform-coded stride field of a literal block
// switch.
const MaxStride = 256

// Probs holds the persistent nibble models for a block-switch kind's
// byte-valued block type.
type Probs struct {
	Hi *probability.AdaptiveCDF16
	Lo *probability.AdaptiveCDF16
}

// NewProbs returns a fresh pair of uniformly-initialized block-type
// models.
func NewProbs() *Probs {
	return &Probs{Hi: probability.NewAdaptiveCDF16(), Lo: probability.NewAdaptiveCDF16()}
}

func codeByte(coder *rangecoding.Coder, b *uint8, p *Probs, speed probability.Speed) {
	var hi, lo uint8
	if coder.IsEncoding() {
		hi = *b >> 4
		lo = *b & 0xF
	}
	coder.Nibble(&hi, p.Hi, speed)
	coder.Nibble(&lo, p.Lo, speed)
	if !coder.IsEncoding() {
		*b = hi<<4 | lo
	}
}

// EncodeOrDecode codes a command- or distance-context BlockSwitch.
func EncodeOrDecode(coder *rangecoding.Coder, bs *command.BlockSwitch, p *Probs, speed probability.Speed) status.Status {
	codeByte(coder, &bs.BlockType, p, speed)
	return status.Success
}

// EncodeOrDecodeLiteral codes a literal-context BlockSwitch, which also
// carries a context-rotation stride.
func EncodeOrDecodeLiteral(coder *rangecoding.Coder, bs *command.LiteralBlockSwitch, p *Probs, speed probability.Speed) status.Status {
	codeByte(coder, &bs.BlockType, p, speed)
	var stride uint32
	if coder.IsEncoding() {
		stride = uint32(bs.Stride)
	}
	coder.Uniform(&stride, MaxStride)
	bs.Stride = uint8(stride)
	return status.Success
}
