package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/wagiedev/nativemsg-go/internal/errors"
)

// DefaultMaxFrameSize is the largest frame length accepted on the read side
// before the stream is treated as desynchronized.
const DefaultMaxFrameSize = 200_000

// State reports what the accumulator is holding.
type State int

const (
	// StateIdle means no bytes are buffered.
	StateIdle State = iota
	// StateAccumulating means a partial frame is buffered.
	StateAccumulating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// Accumulator reassembles length-prefixed frames from arbitrarily sized reads.
//
// An Accumulator is not safe for concurrent use. It is owned by a single
// reader goroutine for the lifetime of one session.
type Accumulator struct {
	buf          []byte
	maxFrameSize int
}

// NewAccumulator creates an empty accumulator. A non-positive maxFrameSize
// selects DefaultMaxFrameSize.
func NewAccumulator(maxFrameSize int) *Accumulator {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	return &Accumulator{maxFrameSize: maxFrameSize}
}

// MaxFrameSize returns the configured ceiling.
func (a *Accumulator) MaxFrameSize() int {
	return a.maxFrameSize
}

// Append adds chunk to the buffer and extracts every complete frame.
//
// Frames are returned in wire order and never alias the internal buffer.
// If a header declares a length above the ceiling, the whole buffer is
// discarded and a *errors.FrameTooLargeError is returned together with any
// frames that were extracted before the bad header.
func (a *Accumulator) Append(chunk []byte) ([][]byte, error) {
	a.buf = append(a.buf, chunk...)

	var frames [][]byte

	// off marks the start of unconsumed bytes; the buffer is compacted
	// once after the loop.
	off := 0

	for len(a.buf)-off >= HeaderSize {
		frame, rest, ok, err := TryExtract(a.buf[off:], a.maxFrameSize)
		if err != nil {
			a.Reset()

			return frames, err
		}

		if !ok {
			break
		}

		frames = append(frames, frame)
		off = len(a.buf) - len(rest)
	}

	if off > 0 {
		a.buf = append(a.buf[:0], a.buf[off:]...)
	}

	return frames, nil
}

// Buffered returns the number of bytes waiting for the rest of a frame.
func (a *Accumulator) Buffered() int {
	return len(a.buf)
}

// State reports whether a partial frame is buffered.
func (a *Accumulator) State() State {
	if len(a.buf) == 0 {
		return StateIdle
	}

	return StateAccumulating
}

// Reset drops all buffered bytes.
func (a *Accumulator) Reset() {
	a.buf = nil
}

// TryExtract attempts to slice one complete frame off the front of buf.
//
// It returns ok=false with rest equal to buf when more bytes are needed.
// A declared length above maxFrameSize yields a *errors.FrameTooLargeError
// and an empty rest. The returned frame is a copy; rest aliases buf.
func TryExtract(buf []byte, maxFrameSize int) (frame, rest []byte, ok bool, err error) {
	if len(buf) < HeaderSize {
		return nil, buf, false, nil
	}

	length := binary.LittleEndian.Uint32(buf[:HeaderSize])
	if uint64(length) > uint64(maxFrameSize) {
		return nil, nil, false, &errors.FrameTooLargeError{Length: length, Limit: maxFrameSize}
	}

	body := buf[HeaderSize:]
	if uint64(len(body)) < uint64(length) {
		return nil, buf, false, nil
	}

	frame = bytes.Clone(body[:length])
	if frame == nil {
		frame = []byte{}
	}

	return frame, body[length:], true, nil
}
