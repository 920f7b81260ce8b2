// Package config provides configuration types for the native messaging transport.
package config

import "context"

// Session is one lifetime of a spawned host: the process, its pipes, and
// the raw byte stream read from its stdout.
//
// Sessions are compared by identity. A termination event from a session
// that is no longer the tracked one is stale.
type Session interface {
	// ID returns a unique, sortable identifier for the session.
	ID() string

	// Generation returns the transport-local sequence number of the session.
	Generation() uint64

	// Chunks yields raw reads from the host stdout. Each slice is owned by
	// the receiver. The channel is closed on EOF or read error.
	Chunks() <-chan []byte

	// Done is closed once the process exit has been observed.
	Done() <-chan struct{}

	// Err returns the exit cause after Done is closed: nil for a clean
	// exit, otherwise a *errors.ProcessError.
	Err() error
}

// Transport defines the interface for host process communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation is ProcessTransport which spawns a subprocess.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start launches a new session. Any live session is stopped first.
	// showUI appends Options.UIArgs to the argument vector.
	Start(ctx context.Context, showUI bool) (Session, error)

	// Write sends raw bytes to the host stdin. Writes are serialized.
	// Returns ErrTransportNotConnected if no session is live.
	Write(ctx context.Context, data []byte) error

	// Stop terminates the live session, if any. Safe to call multiple times.
	Stop() error

	// IsRunning returns true while a session is live.
	IsRunning() bool
}
