// Package frame implements the native messaging wire format.
//
// Every message is a 4-byte little-endian length followed by exactly that
// many payload bytes. There is no checksum, magic number or version byte;
// the channel is the stdio of a locally spawned process.
//
// Encoding is stateless:
//
//	data := frame.Encode([]byte(`{"command":"bw-status"}`))
//
// Decoding is driven by an Accumulator fed with raw reads:
//
//	acc := frame.NewAccumulator(frame.DefaultMaxFrameSize)
//	frames, err := acc.Append(chunk)
//
// A declared length above the ceiling means the stream has lost frame
// alignment. The accumulator drops everything it holds and reports a
// FrameTooLargeError; recovery policy belongs to the caller.
package frame
