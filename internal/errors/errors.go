package errors

import (
	"errors"
	"fmt"
)

// NativeMessagingError is the base interface for all transport errors.
type NativeMessagingError interface {
	error
	IsNativeMessagingError() bool
}

// Compile-time verification that all error types implement NativeMessagingError.
var (
	_ NativeMessagingError = (*HostNotFoundError)(nil)
	_ NativeMessagingError = (*LaunchError)(nil)
	_ NativeMessagingError = (*ProcessError)(nil)
	_ NativeMessagingError = (*FrameTooLargeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrTransportNotConnected indicates no host process is running.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrNotStarted indicates Send was called before Start.
	ErrNotStarted = errors.New("communicator not started")

	// ErrCommunicatorClosed indicates the communicator has been closed and cannot be reused.
	ErrCommunicatorClosed = errors.New("communicator closed: communicators are single-use, create a new one")

	// ErrPayloadTooLarge indicates a payload whose length does not fit the 4-byte header.
	ErrPayloadTooLarge = errors.New("payload too large for frame header")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")
)

// HostNotFoundError indicates the host executable was not found.
type HostNotFoundError struct {
	SearchedPaths []string
}

func (e *HostNotFoundError) Error() string {
	return fmt.Sprintf("native messaging host not found in: %v", e.SearchedPaths)
}

// IsNativeMessagingError implements NativeMessagingError.
func (e *HostNotFoundError) IsNativeMessagingError() bool { return true }

// LaunchError indicates the host process could not be spawned.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch host %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsNativeMessagingError implements NativeMessagingError.
func (e *LaunchError) IsNativeMessagingError() bool { return true }

// ProcessError indicates the host process exited without being asked to.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("host process exited (exit %d): %v", e.ExitCode, e.Err)
	}

	if e.Stderr != "" {
		return fmt.Sprintf("host process exited (exit %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("host process exited (exit %d)", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsNativeMessagingError implements NativeMessagingError.
func (e *ProcessError) IsNativeMessagingError() bool { return true }

// FrameTooLargeError indicates a frame header declared a length above the
// configured ceiling. The stream is considered desynchronized.
type FrameTooLargeError struct {
	Length uint32
	Limit  int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame length %d exceeds limit %d: stream desynchronized", e.Length, e.Limit)
}

// IsNativeMessagingError implements NativeMessagingError.
func (e *FrameTooLargeError) IsNativeMessagingError() bool { return true }
