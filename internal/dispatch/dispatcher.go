package dispatch

import (
	"log/slog"
)

// Delegate receives the two upward calls of the transport.
type Delegate interface {
	// MessageReceived is called once per complete frame, in wire order.
	// The slice is owned by the delegate.
	MessageReceived(data []byte)

	// ProcessTerminated is called once when the host exits without being
	// asked to. err is nil for a clean exit.
	ProcessTerminated(err error)
}

// DelegateFuncs adapts plain functions to the Delegate interface.
// Nil fields are ignored.
type DelegateFuncs struct {
	OnMessage    func(data []byte)
	OnTerminated func(err error)
}

// Compile-time verification that DelegateFuncs implements Delegate.
var _ Delegate = DelegateFuncs{}

// MessageReceived implements Delegate.
func (d DelegateFuncs) MessageReceived(data []byte) {
	if d.OnMessage != nil {
		d.OnMessage(data)
	}
}

// ProcessTerminated implements Delegate.
func (d DelegateFuncs) ProcessTerminated(err error) {
	if d.OnTerminated != nil {
		d.OnTerminated(err)
	}
}

// Dispatcher hands frames and termination notices to a Delegate on an
// Executor, decoupling the reader goroutine from the consumer.
type Dispatcher struct {
	log      *slog.Logger
	delegate Delegate
	executor Executor
	owned    *SerialQueue
}

// NewDispatcher creates a dispatcher. If executor is nil, a SerialQueue is
// created and owned by the dispatcher. A nil delegate discards everything.
func NewDispatcher(log *slog.Logger, delegate Delegate, executor Executor) *Dispatcher {
	d := &Dispatcher{
		log:      log.With("component", "dispatcher"),
		delegate: delegate,
		executor: executor,
	}

	if d.delegate == nil {
		d.delegate = DelegateFuncs{}
	}

	if d.executor == nil {
		d.owned = NewSerialQueue()
		d.executor = d.owned
	}

	return d
}

// Emit schedules delivery of one complete frame.
func (d *Dispatcher) Emit(frame []byte) {
	d.log.Debug("Dispatching frame", "frame_len", len(frame))

	d.executor.Submit(func() {
		d.delegate.MessageReceived(frame)
	})
}

// NotifyTerminated schedules delivery of a termination notice.
func (d *Dispatcher) NotifyTerminated(err error) {
	d.log.Debug("Dispatching termination", "error", err)

	d.executor.Submit(func() {
		d.delegate.ProcessTerminated(err)
	})
}

// Close drains and stops the owned queue, if any. Externally supplied
// executors are left running.
func (d *Dispatcher) Close() {
	if d.owned != nil {
		d.owned.Close()
	}
}
