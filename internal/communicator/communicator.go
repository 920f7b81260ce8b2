package communicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/nativemsg-go/internal/codec"
	"github.com/wagiedev/nativemsg-go/internal/config"
	"github.com/wagiedev/nativemsg-go/internal/dispatch"
	"github.com/wagiedev/nativemsg-go/internal/errors"
	"github.com/wagiedev/nativemsg-go/internal/frame"
	"github.com/wagiedev/nativemsg-go/internal/metrics"
	"github.com/wagiedev/nativemsg-go/internal/subprocess"
)

// Communicator ties a transport, a frame accumulator and a dispatcher into
// one start/send/stop lifecycle.
type Communicator struct {
	log        *slog.Logger
	options    *config.Options
	transport  config.Transport
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics

	// Errgroup for per-session pump goroutines
	eg *errgroup.Group

	mu         sync.Mutex
	current    config.Session // Only this session may emit or notify
	terminated config.Session // Stopped after a desync, exit already reported
	closed     bool
	closeOnce  sync.Once
}

// New creates a communicator. Nothing is launched until Start.
func New(options *config.Options) *Communicator {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	transport := options.Transport
	if transport == nil {
		transport = subprocess.NewProcessTransport(log, options)
	}

	return &Communicator{
		log:        log.With("component", "communicator"),
		options:    options,
		transport:  transport,
		dispatcher: dispatch.NewDispatcher(log, options.Delegate, options.Executor),
		metrics:    metrics.New(options.MetricsRegisterer),
		eg:         new(errgroup.Group),
	}
}

// Start launches the host with its regular arguments.
func (c *Communicator) Start(ctx context.Context) error {
	return c.start(ctx, false)
}

// StartWithUI launches the host with Options.UIArgs appended.
func (c *Communicator) StartWithUI(ctx context.Context) error {
	return c.start(ctx, true)
}

func (c *Communicator) start(ctx context.Context, showUI bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrCommunicatorClosed
	}

	// Detach first so the replaced session's exit is recognized as stale.
	if c.current != nil {
		c.log.Debug("Replacing active session", "session_id", c.current.ID())
		c.current = nil
	}

	session, err := c.transport.Start(ctx, showUI)
	if err != nil {
		return err
	}

	c.current = session
	c.metrics.SessionsStarted.Inc()

	c.eg.Go(func() error {
		c.pump(session)

		return nil
	})

	c.log.Info("Session started", "session_id", session.ID(), "show_ui", showUI)

	return nil
}

// pump feeds one session's raw reads through an accumulator and hands
// complete frames to the dispatcher. It owns the accumulator, so frames
// are emitted in arrival order.
func (c *Communicator) pump(session config.Session) {
	log := c.log.With("session_id", session.ID())
	acc := frame.NewAccumulator(c.options.MaxFrameSize)

	defer func() {
		acc.Reset()
		c.metrics.BufferedBytes.Set(0)
	}()

	for chunk := range session.Chunks() {
		if !c.isCurrent(session) {
			continue
		}

		c.metrics.BytesReceived.Add(float64(len(chunk)))

		frames, err := acc.Append(chunk)

		for _, f := range frames {
			c.metrics.FramesReceived.Inc()
			c.dispatcher.Emit(f)
		}

		c.metrics.BufferedBytes.Set(float64(acc.Buffered()))

		if err == nil {
			continue
		}

		c.metrics.Desyncs.Inc()

		if c.options.DesyncPolicy == config.DesyncTerminate {
			log.Warn("Stream desynchronized, terminating session", "error", err)
			c.terminate(session, err)

			continue
		}

		log.Warn("Stream desynchronized, buffer discarded", "error", err)
	}

	<-session.Done()
	c.handleExit(session, session.Err())
}

func (c *Communicator) isCurrent(session config.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current == session
}

// terminate stops session on behalf of the communicator and reports cause
// to the delegate, provided session is still the tracked one.
func (c *Communicator) terminate(session config.Session, cause error) {
	c.mu.Lock()

	if c.current != session {
		c.mu.Unlock()

		return
	}

	c.current = nil
	c.terminated = session

	if err := c.transport.Stop(); err != nil {
		c.log.Warn("Failed to stop transport", "error", err)
	}

	c.mu.Unlock()

	// The delegate may call back into the communicator, so the lock is
	// released before notifying.
	c.metrics.UnexpectedTerminations.Inc()
	c.dispatcher.NotifyTerminated(cause)
}

// handleExit decides whether an observed exit is reported. Exits of
// sessions that were replaced, stopped or already reported are dropped.
func (c *Communicator) handleExit(session config.Session, err error) {
	c.mu.Lock()

	if c.terminated == session {
		c.terminated = nil
		c.mu.Unlock()
		c.log.Debug("Terminated session exited", "session_id", session.ID())

		return
	}

	if c.current != session {
		c.mu.Unlock()
		c.metrics.StaleTerminations.Inc()
		c.log.Debug("Ignoring stale session exit", "session_id", session.ID(), "generation", session.Generation())

		return
	}

	c.current = nil
	c.mu.Unlock()

	c.metrics.UnexpectedTerminations.Inc()
	c.log.Warn("Host exited unexpectedly", "session_id", session.ID(), "error", err)
	c.dispatcher.NotifyTerminated(err)
}

// Send frames payload and writes it to the host.
func (c *Communicator) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	closed, running := c.closed, c.current != nil
	c.mu.Unlock()

	if closed {
		return errors.ErrCommunicatorClosed
	}

	if !running {
		return errors.ErrNotStarted
	}

	if uint64(len(payload)) > frame.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", errors.ErrPayloadTooLarge, len(payload))
	}

	data := frame.Encode(payload)

	if err := c.transport.Write(ctx, data); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	c.metrics.FramesSent.Inc()
	c.metrics.BytesSent.Add(float64(len(data)))

	return nil
}

// SendJSON marshals v and sends it as one frame.
func (c *Communicator) SendJSON(ctx context.Context, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return err
	}

	return c.Send(ctx, data)
}

// Stop terminates the active session without notifying the delegate.
// Safe to call when nothing is running.
func (c *Communicator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopLocked()
}

// stopLocked detaches the current session and stops the transport.
// Caller must hold c.mu.
func (c *Communicator) stopLocked() error {
	if c.current != nil {
		c.log.Info("Stopping session", "session_id", c.current.ID())
		c.current = nil
	}

	if err := c.transport.Stop(); err != nil {
		return fmt.Errorf("stop transport: %w", err)
	}

	return nil
}

// IsRunning reports whether a session is active.
func (c *Communicator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current != nil && c.transport.IsRunning()
}

// SessionID returns the active session's ID, or "" when none is active.
func (c *Communicator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ""
	}

	return c.current.ID()
}

// Close stops the session, waits for pump goroutines and drains pending
// deliveries. The communicator cannot be restarted afterwards.
// This method is safe to call multiple times.
func (c *Communicator) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		closeErr = c.stopLocked()
		c.mu.Unlock()

		if err := c.eg.Wait(); err != nil && closeErr == nil {
			closeErr = err
		}

		c.dispatcher.Close()
		c.log.Info("Communicator closed")
	})

	return closeErr
}
