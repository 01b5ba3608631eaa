// Package literal implements the Literal command sub-coder: a run of
// raw output bytes, coded one nibble pair at a time against an
// adaptive context table selected from the last produced byte. Each
// context owns a mutable running-frequency CDF16 pair that adapts
// after every coded nibble.
package literal

import (
	"github.com/streamcoder/divans/alloc"
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/probability"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
)

// NumContexts is the number of literal contexts selected by the high
// six bits of the most recently produced byte. A real brotli-like context
// model picks among many more (UTF8/signed/MSB6/LSB6 variants keyed off
// PredictionMode); this module uses one fixed scheme.
const NumContexts = 64

// MaxLength bounds the uniform-coded length prefix of a literal run.
const MaxLength = 1 << 20

// Probs holds the persistent per-context nibble models for literal
// bytes: high nibble keyed by context, low nibble keyed by the same
// context (kept independent of the decoded high nibble for simplicity).
type Probs struct {
	Hi [NumContexts]*probability.AdaptiveCDF16
	Lo [NumContexts]*probability.AdaptiveCDF16
}

// NewProbs returns a fresh set of uniformly-initialized literal models.
func NewProbs() *Probs {
	p := &Probs{}
	for i := range p.Hi {
		p.Hi[i] = probability.NewAdaptiveCDF16()
		p.Lo[i] = probability.NewAdaptiveCDF16()
	}
	return p
}

// ContextFromLast8 derives a literal context index from the packed
// last-8-produced-bytes word the codec driver's bookkeeper maintains.
func ContextFromLast8(last8 uint64) int {
	lastByte := byte(last8)
	return int(lastByte>>2) & (NumContexts - 1)
}

// EncodeOrDecode encodes lc's Data if coder is encoding, or decodes
// into lc (allocating Data via a) if coder is decoding. ctx selects
// which context's models to adapt and is computed once per command
// from the byte produced immediately before it; speed controls how
// quickly those models track the observed distribution.
func EncodeOrDecode(coder *rangecoding.Coder, lc *command.LiteralCommand, probs *Probs, ctx int, speed probability.Speed, a *alloc.Allocator) status.Status {
	var length uint32
	if coder.IsEncoding() {
		length = uint32(len(lc.Data))
	}
	coder.Uniform(&length, MaxLength)
	if !coder.IsEncoding() {
		lc.Data = a.AllocCell(int(length))
	}
	hiCdf := probs.Hi[ctx]
	loCdf := probs.Lo[ctx]
	for i := range lc.Data {
		var hi, lo uint8
		if coder.IsEncoding() {
			b := lc.Data[i]
			hi = b >> 4
			lo = b & 0xF
		}
		coder.Nibble(&hi, hiCdf, speed)
		coder.Nibble(&lo, loCdf, speed)
		if !coder.IsEncoding() {
			lc.Data[i] = hi<<4 | lo
		}
	}
	return status.Success
}
