package nativemsg

import "github.com/wagiedev/nativemsg-go/internal/errors"

// Re-export error types from internal package

// HostNotFoundError indicates the host executable was not found.
type HostNotFoundError = errors.HostNotFoundError

// LaunchError indicates the host process could not be spawned.
type LaunchError = errors.LaunchError

// ProcessError indicates the host process exited without being asked to.
type ProcessError = errors.ProcessError

// FrameTooLargeError indicates an oversized frame header was read.
type FrameTooLargeError = errors.FrameTooLargeError

// NativeMessagingError is the base interface for all transport errors.
type NativeMessagingError = errors.NativeMessagingError

// Re-export sentinel errors from internal package.
var (
	// ErrTransportNotConnected indicates no host process is running.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrNotStarted indicates Send was called before Start.
	ErrNotStarted = errors.ErrNotStarted

	// ErrCommunicatorClosed indicates the communicator has been closed and cannot be reused.
	ErrCommunicatorClosed = errors.ErrCommunicatorClosed

	// ErrPayloadTooLarge indicates a payload too long for the frame header.
	ErrPayloadTooLarge = errors.ErrPayloadTooLarge

	// ErrStdinClosed indicates host stdin was closed after a cancelled write.
	ErrStdinClosed = errors.ErrStdinClosed
)
