package nativemsg

import (
	"context"

	"github.com/wagiedev/nativemsg-go/internal/communicator"
)

// Communicator exchanges framed messages with a native messaging host.
//
// Lifecycle: Communicators are single-use. Start may be called again to
// restart the host; after Close, create a new one with NewCommunicator.
//
// Example usage:
//
//	comm := NewCommunicator(
//	    WithSearchNames("desktop_proxy"),
//	    WithDelegate(myDelegate),
//	)
//	defer comm.Close()
//
//	if err := comm.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := comm.Send(ctx, []byte(`{"command":"bw-status"}`)); err != nil {
//	    log.Fatal(err)
//	}
type Communicator interface {
	// Start launches the host. A running host is stopped first and its
	// exit is not reported.
	// Returns HostNotFoundError if the host is not found, LaunchError if it
	// cannot be spawned.
	Start(ctx context.Context) error

	// StartWithUI launches the host with the UI arguments appended.
	StartWithUI(ctx context.Context) error

	// Send writes payload as one frame. Concurrent sends never interleave.
	// Returns ErrNotStarted if no host is running.
	Send(ctx context.Context, payload []byte) error

	// SendJSON marshals v to JSON and sends it as one frame.
	SendJSON(ctx context.Context, v any) error

	// Stop terminates the host without notifying the delegate.
	// Safe to call when nothing is running.
	Stop() error

	// IsRunning reports whether a host session is active.
	IsRunning() bool

	// SessionID returns the active session's identifier, or "".
	SessionID() string

	// Close stops the host and drains pending delegate calls.
	// Safe to call multiple times.
	Close() error
}

// Compile-time check that the internal communicator implements Communicator.
var _ Communicator = (*communicator.Communicator)(nil)

// NewCommunicator creates a communicator. The host is not launched until
// Start is called.
func NewCommunicator(opts ...Option) Communicator {
	return communicator.New(applyOptions(opts))
}
