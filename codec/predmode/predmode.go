// Package predmode implements the PredictionMode command sub-coder,
// which switches which literal prediction mode (sign/UTF8/MSB6/LSB6)
// governs literal context selection going forward. The mode itself is
// a single nibble under one adaptive CDF16; no context-map payload is
// carried on the wire.
package predmode

import (
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/probability"
	"github.com/streamcoder/divans/rangecoding"
	"github.com/streamcoder/divans/status"
)

// Probs holds the persistent nibble model for the prediction-mode
// value.
type Probs struct {
	Mode *probability.AdaptiveCDF16
}

// NewProbs returns a fresh uniformly-initialized prediction-mode model.
func NewProbs() *Probs {
	return &Probs{Mode: probability.NewAdaptiveCDF16()}
}

// EncodeOrDecode codes pm's Mode field.
func EncodeOrDecode(coder *rangecoding.Coder, pm *command.PredictionModeContextMap, p *Probs, speed probability.Speed) status.Status {
	coder.Nibble(&pm.Mode, p.Mode, speed)
	return status.Success
}
