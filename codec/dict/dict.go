// Package dict implements the Dict command sub-coder: a reference to a
// word in the static dictionary, identified by WordID and TransformID,
// expanding to FinalSize bytes. The dictionary's actual word list and
// transform table live with the caller; this module only carries the
// wire-level reference.
package dict

import (
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
)

// MaxWordID, MaxTransformID and MaxFinalSize bound the uniform-coded
// ranges, standing in for the real dictionary's word-count and
// transform-table size.
const (
	MaxWordID      = 1 << 20
	MaxTransformID = 256
	MaxFinalSize   = 1 << 16
)

// EncodeOrDecode encodes dc's fields if coder is encoding, or decodes
// into dc if coder is decoding.
func EncodeOrDecode(coder *rangecoding.Coder, dc *command.DictCommand) status.Status {
	coder.Uniform(&dc.WordID, MaxWordID)
	var transform uint32
	if coder.IsEncoding() {
		transform = uint32(dc.TransformID)
	}
	coder.Uniform(&transform, MaxTransformID)
	dc.TransformID = uint8(transform)
	coder.Uniform(&dc.FinalSize, MaxFinalSize)
	return status.Success
}
