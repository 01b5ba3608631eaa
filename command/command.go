// Package command defines the tagged Command variant that flows
// between a caller and the codec driver: Copy, Dict, Literal, the
// three BlockSwitch kinds, and PredictionMode. A Command is a plain
// struct carrying a Kind tag plus one populated payload field.
package command

import "github.com/streamcoder/divans/types"

// CopyCommand is a backward reference into already-produced output:
// copy NumBytes bytes starting Distance bytes behind the current
// position.
type CopyCommand struct {
	Distance uint32
	NumBytes uint32
}

// DictCommand references a word in the static dictionary. Only the
// reference triple the wire format needs is carried; the dictionary's
// contents live with the caller.
type DictCommand struct {
	WordID      uint32
	TransformID uint8
	FinalSize   uint32
}

// LiteralCommand carries a raw run of output bytes by value.
type LiteralCommand struct {
	Data []byte
}

// BlockSwitch changes the active block type for the command or distance
// context.
type BlockSwitch struct {
	BlockType uint8
}

// LiteralBlockSwitch changes the active literal block type and the
// stride at which literal contexts rotate.
type LiteralBlockSwitch struct {
	BlockType uint8
	Stride    uint8
}

// PredictionModeContextMap selects the literal prediction mode used
// to pick literal contexts.
type PredictionModeContextMap struct {
	Mode uint8
}

// Prediction mode values.
const (
	PredictionModeSign uint8 = iota
	PredictionModeUTF8
	PredictionModeMSB6
	PredictionModeLSB6
)

// Command is a tagged variant over the seven command kinds. Exactly one
// payload field is meaningful, selected by Kind.
type Command struct {
	Kind                types.CommandKind
	Copy                CopyCommand
	Dict                DictCommand
	Literal             LiteralCommand
	BlockSwitchLiteral  LiteralBlockSwitch
	BlockSwitchCommand  BlockSwitch
	BlockSwitchDistance BlockSwitch
	PredictionMode      PredictionModeContextMap
}

// NewCopy returns a Copy command.
func NewCopy(distance, numBytes uint32) Command {
	return Command{Kind: types.CommandCopy, Copy: CopyCommand{Distance: distance, NumBytes: numBytes}}
}

// NewDict returns a Dict command.
func NewDict(wordID uint32, transformID uint8, finalSize uint32) Command {
	return Command{Kind: types.CommandDict, Dict: DictCommand{WordID: wordID, TransformID: transformID, FinalSize: finalSize}}
}

// NewLiteral returns a Literal command over data (not copied).
func NewLiteral(data []byte) Command {
	return Command{Kind: types.CommandLiteral, Literal: LiteralCommand{Data: data}}
}

// NewBlockSwitchLiteral returns a literal block-switch command.
func NewBlockSwitchLiteral(blockType, stride uint8) Command {
	return Command{Kind: types.CommandBlockSwitchLiteral, BlockSwitchLiteral: LiteralBlockSwitch{BlockType: blockType, Stride: stride}}
}

// NewBlockSwitchCommand returns a command-type block-switch command.
func NewBlockSwitchCommand(blockType uint8) Command {
	return Command{Kind: types.CommandBlockSwitchCommand, BlockSwitchCommand: BlockSwitch{BlockType: blockType}}
}

// NewBlockSwitchDistance returns a distance block-switch command.
func NewBlockSwitchDistance(blockType uint8) Command {
	return Command{Kind: types.CommandBlockSwitchDistance, BlockSwitchDistance: BlockSwitch{BlockType: blockType}}
}

// NewPredictionMode returns a prediction-mode command.
func NewPredictionMode(mode uint8) Command {
	return Command{Kind: types.CommandPredictionMode, PredictionMode: PredictionModeContextMap{Mode: mode}}
}

// TypeToNibble maps a command (or the end-of-stream sentinel) to its
// 4-bit wire tag.
func TypeToNibble(cmd *Command, isEnd bool) uint8 {
	if isEnd {
		return types.CommandEndNibble
	}
	return uint8(cmd.Kind)
}

// KindFromNibble maps a wire tag back to a CommandKind, reporting
// whether the nibble denotes end-of-stream. The sub-state construction
// the tag selects lives in package codec.
func KindFromNibble(nibble uint8) (kind types.CommandKind, isEnd bool, ok bool) {
	if nibble == types.CommandEndNibble {
		return 0, true, true
	}
	switch types.CommandKind(nibble) {
	case types.CommandCopy, types.CommandDict, types.CommandLiteral,
		types.CommandBlockSwitchLiteral, types.CommandBlockSwitchCommand,
		types.CommandBlockSwitchDistance, types.CommandPredictionMode:
		return types.CommandKind(nibble), false, true
	default:
		return 0, false, false
	}
}
