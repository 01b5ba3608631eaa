// Package copy implements the Copy command sub-coder: a backward
// reference of NumBytes bytes starting Distance bytes behind the
// current ring-buffer position.
package copy

import (
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
)

// MaxDistance and MaxNumBytes bound the uniform-coded ranges for the
// Distance and NumBytes fields. Full brotli-like streams use a
// prefix-code-plus-extra-bits scheme tuned per context; this module
// codes each field with one uniform call instead.
const (
	MaxDistance = 1 << 24
	MaxNumBytes = 1 << 24
)

// EncodeOrDecode encodes cc's fields if coder is encoding, or decodes
// into cc if coder is decoding. It always completes in one call; the
// Begin-state drain/fill in package codec, together with its rollback
// of a decode that ran out of input, is what makes the overall command
// stream restartable.
func EncodeOrDecode(coder *rangecoding.Coder, cc *command.CopyCommand) status.Status {
	coder.Uniform(&cc.Distance, MaxDistance)
	coder.Uniform(&cc.NumBytes, MaxNumBytes)
	return status.Success
}
