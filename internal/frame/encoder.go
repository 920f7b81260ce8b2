package frame

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/wagiedev/nativemsg-go/internal/errors"
)

const (
	// HeaderSize is the size of the little-endian length prefix.
	HeaderSize = 4
	// MaxPayloadSize is the largest length the header can express.
	MaxPayloadSize = math.MaxUint32
)

// Encode returns the wire form of payload: a 4-byte little-endian length
// followed by the payload bytes.
//
// No ceiling is enforced on the write path; the ceiling only guards reads.
func Encode(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), payload)
}

// AppendFrame appends the encoded frame for payload to dst and returns the
// extended slice.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))

	return append(dst, payload...)
}

// WriteFrame encodes payload and writes the complete frame with a single
// Write call.
//
// Returns ErrPayloadTooLarge if the payload length cannot be represented in
// the header.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", errors.ErrPayloadTooLarge, len(payload))
	}

	data := Encode(payload)

	n, err := w.Write(data)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("write frame: %w", io.ErrShortWrite)
	}

	return nil
}
