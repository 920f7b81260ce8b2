package nativemsg

import (
	"github.com/wagiedev/nativemsg-go/internal/config"
	"github.com/wagiedev/nativemsg-go/internal/dispatch"
)

// Transport defines the interface for host process communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation spawns the host as a subprocess.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport

// Session is one lifetime of a host started by a Transport.
type Session = config.Session

// Delegate receives complete messages and unexpected termination notices.
type Delegate = dispatch.Delegate

// DelegateFuncs adapts plain functions to the Delegate interface.
type DelegateFuncs = dispatch.DelegateFuncs

// Executor runs delegate calls. Submitted functions must run in order.
type Executor = dispatch.Executor

// SerialQueue is the default Executor: an unbounded FIFO drained by one
// goroutine.
type SerialQueue = dispatch.SerialQueue

// NewSerialQueue starts a SerialQueue. Close it when done.
func NewSerialQueue() *SerialQueue {
	return dispatch.NewSerialQueue()
}

// DesyncPolicy selects the reaction to an oversized frame header.
type DesyncPolicy = config.DesyncPolicy

const (
	// DesyncDiscard drops buffered bytes and keeps reading.
	DesyncDiscard = config.DesyncDiscard
	// DesyncTerminate stops the host and notifies the delegate.
	DesyncTerminate = config.DesyncTerminate
)

// ParseDesyncPolicy parses a policy name such as "discard" or "terminate".
func ParseDesyncPolicy(s string) (DesyncPolicy, error) {
	return config.ParseDesyncPolicy(s)
}

// Options holds the communicator configuration built by Option functions.
type Options = config.Options
