// errors.go defines the sentinel errors shared across this module's
// packages.

package divans

import "errors"

// Sentinel errors for malformed input and protocol misuse. These are
// never returned for "needs more input/output" conditions — those are
// reported via status.Status instead.
var (
	// ErrBadMagic indicates a signature file header did not start with a
	// recognized hash-kind magic.
	ErrBadMagic = errors.New("divans: unrecognized signature file magic")

	// ErrTruncatedSignature indicates a signature file or record ended
	// before its declared length was satisfied.
	ErrTruncatedSignature = errors.New("divans: truncated signature data")

	// ErrWrongSigSize indicates a crypto signature's declared size is not
	// one of the supported sizes or exceeds the hash kind's digest size.
	ErrWrongSigSize = errors.New("divans: crypto signature size does not match hash kind")

	// ErrProtocolMisuse indicates a caller violated a component's call
	// contract, such as encoding after a flush has started.
	ErrProtocolMisuse = errors.New("divans: operation invalid in current state")

	// ErrChecksumMismatch indicates a compressed stream does not end in
	// the fixed literal checksum trailer.
	ErrChecksumMismatch = errors.New("divans: checksum trailer mismatch")

	// ErrAllocatorExhausted indicates a bounded internal buffer could not
	// satisfy an allocation request.
	ErrAllocatorExhausted = errors.New("divans: allocator exhausted")
)
