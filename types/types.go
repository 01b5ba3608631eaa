// Package types defines shared enums used across this module's packages.
// It is imported by command, codec and rdiffsig.
package types

// CommandKind identifies the kind of command in a command stream, and
// doubles as the 4-bit nibble tag written before each command (1-7;
// 0xF marks end of stream).
type CommandKind uint8

const (
	CommandCopy CommandKind = iota + 1
	CommandDict
	CommandLiteral
	CommandBlockSwitchLiteral
	CommandBlockSwitchCommand
	CommandBlockSwitchDistance
	CommandPredictionMode
)

// CommandEndNibble is the reserved nibble value that terminates a
// command stream.
const CommandEndNibble uint8 = 0xF

// HashKind identifies which hash function a signature file's crypto
// signatures were computed with.
type HashKind uint8

const (
	// HashMD4 corresponds to signature file magic `72 73 01 36`.
	HashMD4 HashKind = iota
	// HashBLAKE5 corresponds to signature file magic `72 73 01 37`. No
	// real "BLAKE5" hash exists; this module computes it with
	// golang.org/x/crypto/blake2b, truncated to the configured size.
	HashBLAKE5
)

// DigestSize returns the number of bytes HashKind produces before any
// configured truncation.
func (h HashKind) DigestSize() int {
	switch h {
	case HashMD4:
		return 16
	case HashBLAKE5:
		return 32
	default:
		return 0
	}
}
