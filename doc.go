// Package divans implements a streaming, restartable lossless byte-stream
// codec: a command-stream arithmetic coder, a self-framing multi-stream
// byte muxer, and a rolling-hash block-match signature/dictionary engine.
//
// Every component here is driven incrementally: a call either finishes,
// or returns a status.Status telling the caller to supply more input,
// more output space, or try again after draining, with all internal
// state preserved across calls. Nothing is torn down implicitly; buffers
// come from an alloc.Allocator and are released explicitly.
//
// # Subsystems
//
//   - rangecoding: the byte-exact arithmetic coder (Encoder, Decoder) and
//     the 4-bit nibble codec built on top of it.
//   - codec: the command-stream driver state machine that turns a
//     sequence of Copy/Dict/Literal/BlockSwitch/PredictionMode commands
//     into a compressed stream and back.
//   - mux: the self-framing interleaver that multiplexes several
//     independent byte streams into one, and demultiplexes them again.
//   - rdiffsig: the rolling-hash signature file format and the
//     CustomDictionary block-match reconstruction algorithm built on it.
package divans
