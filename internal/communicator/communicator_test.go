package communicator

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/nativemsg-go/internal/config"
	"github.com/wagiedev/nativemsg-go/internal/dispatch"
	"github.com/wagiedev/nativemsg-go/internal/errors"
	"github.com/wagiedev/nativemsg-go/internal/frame"
)

// fakeSession is a scripted host session. The test feeds chunks and
// decides when and how the session ends.
type fakeSession struct {
	id         string
	generation uint64
	chunks     chan []byte
	done       chan struct{}
	err        error
	once       sync.Once
}

func (s *fakeSession) ID() string            { return s.id }
func (s *fakeSession) Generation() uint64    { return s.generation }
func (s *fakeSession) Chunks() <-chan []byte { return s.chunks }
func (s *fakeSession) Done() <-chan struct{} { return s.done }
func (s *fakeSession) Err() error            { return s.err }

func (s *fakeSession) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.chunks)
		close(s.done)
	})
}

// fakeTransport records writes and hands out fakeSessions.
type fakeTransport struct {
	mu       sync.Mutex
	sessions []*fakeSession
	current  *fakeSession
	written  bytes.Buffer
	startErr error
	showUI   []bool
	stops    int
}

var _ config.Transport = (*fakeTransport)(nil)

func (t *fakeTransport) Start(_ context.Context, showUI bool) (config.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.startErr != nil {
		return nil, t.startErr
	}

	if t.current != nil {
		t.current.finish(nil)
	}

	s := &fakeSession{
		id:         fmt.Sprintf("session-%d", len(t.sessions)+1),
		generation: uint64(len(t.sessions) + 1),
		chunks:     make(chan []byte, 16),
		done:       make(chan struct{}),
	}

	t.sessions = append(t.sessions, s)
	t.current = s
	t.showUI = append(t.showUI, showUI)

	return s, nil
}

func (t *fakeTransport) Write(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return errors.ErrTransportNotConnected
	}

	t.written.Write(data)

	return nil
}

func (t *fakeTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stops++

	if t.current != nil {
		t.current.finish(nil)
		t.current = nil
	}

	return nil
}

func (t *fakeTransport) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current != nil
}

func (t *fakeTransport) session(i int) *fakeSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sessions[i]
}

// channelDelegate forwards delegate calls onto channels.
type channelDelegate struct {
	messages   chan []byte
	terminated chan error
}

func newChannelDelegate() *channelDelegate {
	return &channelDelegate{
		messages:   make(chan []byte, 64),
		terminated: make(chan error, 8),
	}
}

func (d *channelDelegate) MessageReceived(data []byte) { d.messages <- data }
func (d *channelDelegate) ProcessTerminated(err error) { d.terminated <- err }

func (d *channelDelegate) nextMessage(t *testing.T) []byte {
	t.Helper()

	select {
	case msg := <-d.messages:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")

		return nil
	}
}

func (d *channelDelegate) nextTermination(t *testing.T) error {
	t.Helper()

	select {
	case err := <-d.terminated:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for termination")

		return nil
	}
}

func (d *channelDelegate) requireNoTermination(t *testing.T) {
	t.Helper()

	select {
	case err := <-d.terminated:
		t.Fatalf("unexpected termination notice: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestCommunicator(t *testing.T, policy config.DesyncPolicy) (*Communicator, *fakeTransport, *channelDelegate) {
	t.Helper()

	transport := &fakeTransport{}
	delegate := newChannelDelegate()

	c := New(&config.Options{
		Transport:    transport,
		Delegate:     delegate,
		DesyncPolicy: policy,
	})

	t.Cleanup(func() { _ = c.Close() })

	return c, transport, delegate
}

func TestCommunicator_FramesDeliveredInOrder(t *testing.T) {
	c, transport, delegate := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))

	s := transport.session(0)

	stream := append(frame.Encode([]byte(`{"n":1}`)), frame.Encode([]byte(`{"n":2}`))...)
	stream = append(stream, frame.Encode([]byte(`{"n":3}`))...)

	// Split mid-header and mid-payload.
	s.chunks <- stream[:2]
	s.chunks <- stream[2:9]
	s.chunks <- stream[9:]

	require.Equal(t, `{"n":1}`, string(delegate.nextMessage(t)))
	require.Equal(t, `{"n":2}`, string(delegate.nextMessage(t)))
	require.Equal(t, `{"n":3}`, string(delegate.nextMessage(t)))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.FramesReceived) == 3
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, float64(len(stream)), testutil.ToFloat64(c.metrics.BytesReceived))
}

func TestCommunicator_SendEncodesFrame(t *testing.T) {
	c, transport, _ := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Send(context.Background(), []byte("hello")))
	require.NoError(t, c.SendJSON(context.Background(), map[string]string{"command": "bw-status"}))

	want := append(frame.Encode([]byte("hello")), frame.Encode([]byte(`{"command":"bw-status"}`))...)

	transport.mu.Lock()
	got := bytes.Clone(transport.written.Bytes())
	transport.mu.Unlock()

	require.Equal(t, want, got)
	require.Equal(t, float64(2), testutil.ToFloat64(c.metrics.FramesSent))
	require.Equal(t, float64(len(want)), testutil.ToFloat64(c.metrics.BytesSent))
}

func TestCommunicator_SendBeforeStart(t *testing.T) {
	c, _, _ := newTestCommunicator(t, config.DesyncDiscard)

	err := c.Send(context.Background(), []byte("x"))
	require.ErrorIs(t, err, errors.ErrNotStarted)
	require.False(t, c.IsRunning())
	require.Empty(t, c.SessionID())
}

func TestCommunicator_SendJSONMarshalError(t *testing.T) {
	c, _, _ := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))
	require.Error(t, c.SendJSON(context.Background(), make(chan int)))
}

func TestCommunicator_StartFailure(t *testing.T) {
	c, transport, _ := newTestCommunicator(t, config.DesyncDiscard)

	launchErr := &errors.LaunchError{Path: "/opt/host", Err: stderrors.New("permission denied")}
	transport.startErr = launchErr

	err := c.Start(context.Background())
	require.ErrorIs(t, err, launchErr)
	require.False(t, c.IsRunning())
}

func TestCommunicator_StartWithUI(t *testing.T) {
	c, transport, _ := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.StartWithUI(context.Background()))

	transport.mu.Lock()
	defer transport.mu.Unlock()

	require.Equal(t, []bool{false, true}, transport.showUI)
}

// TestCommunicator_StaleTerminationIgnored tests that only the tracked
// session may report termination.
func TestCommunicator_StaleTerminationIgnored(t *testing.T) {
	c, transport, delegate := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))
	a := transport.session(0)

	require.NoError(t, c.Start(context.Background()))
	b := transport.session(1)

	require.Equal(t, b.ID(), c.SessionID())

	// A was ended by the restart; its pump sees a stale exit.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.StaleTerminations) == 1
	}, 5*time.Second, 5*time.Millisecond)

	// A late event tagged with A is ignored as well.
	c.handleExit(a, stderrors.New("late"))
	delegate.requireNoTermination(t)

	exitErr := &errors.ProcessError{ExitCode: 1}
	b.finish(exitErr)

	require.Equal(t, exitErr, delegate.nextTermination(t))
	require.False(t, c.IsRunning())

	// Exactly once per session.
	c.handleExit(b, exitErr)
	delegate.requireNoTermination(t)
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.UnexpectedTerminations))
}

func TestCommunicator_StopDoesNotNotify(t *testing.T) {
	c, transport, delegate := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))
	require.True(t, c.IsRunning())

	require.NoError(t, c.Stop())
	require.False(t, c.IsRunning())

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.StaleTerminations) == 1
	}, 5*time.Second, 5*time.Millisecond)
	delegate.requireNoTermination(t)

	require.ErrorIs(t, c.Send(context.Background(), []byte("x")), errors.ErrNotStarted)

	// Stop with nothing running is a no-op.
	require.NoError(t, c.Stop())
	require.Equal(t, 2, transport.stops)
}

func TestCommunicator_CleanExitNotifiesNil(t *testing.T) {
	c, transport, delegate := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))

	s := transport.session(0)
	s.chunks <- frame.Encode([]byte("last"))
	s.finish(nil)

	// The last frame is delivered before the termination notice.
	require.Equal(t, "last", string(delegate.nextMessage(t)))
	require.NoError(t, delegate.nextTermination(t))
}

func TestCommunicator_DesyncDiscard(t *testing.T) {
	c, transport, delegate := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))

	s := transport.session(0)
	s.chunks <- []byte{0xFF, 0xFF, 0xFF, 0xFF, 'j', 'u', 'n', 'k'}
	s.chunks <- frame.Encode([]byte("after"))

	require.Equal(t, "after", string(delegate.nextMessage(t)))
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Desyncs))
	require.True(t, c.IsRunning())
	delegate.requireNoTermination(t)
}

func TestCommunicator_DesyncTerminate(t *testing.T) {
	c, transport, delegate := newTestCommunicator(t, config.DesyncTerminate)

	require.NoError(t, c.Start(context.Background()))

	s := transport.session(0)
	s.chunks <- frame.Encode([]byte("before"))
	s.chunks <- []byte{0x41, 0x0D, 0x03, 0x00}

	require.Equal(t, "before", string(delegate.nextMessage(t)))

	err := delegate.nextTermination(t)

	tooLarge, ok := stderrors.AsType[*errors.FrameTooLargeError](err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, uint32(200_001), tooLarge.Length)
	require.Equal(t, frame.DefaultMaxFrameSize, tooLarge.Limit)

	require.False(t, c.IsRunning())

	// The session's own exit after the forced stop is neither reported
	// again nor counted as stale.
	delegate.requireNoTermination(t)
	require.NoError(t, c.Close())
	require.Zero(t, testutil.ToFloat64(c.metrics.StaleTerminations))
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.UnexpectedTerminations))
}

// inlineExecutor runs delegate calls on the submitting goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Submit(fn func()) { fn() }

// TestCommunicator_DesyncTerminateDelegateReentry tests that a delegate run
// inline may call back into the communicator from ProcessTerminated,
// including relaunching the host.
func TestCommunicator_DesyncTerminateDelegateReentry(t *testing.T) {
	transport := &fakeTransport{}

	var c *Communicator

	type reentry struct {
		err      error
		running  bool
		startErr error
	}

	results := make(chan reentry, 1)

	c = New(&config.Options{
		Transport:    transport,
		Executor:     inlineExecutor{},
		DesyncPolicy: config.DesyncTerminate,
		Delegate: dispatch.DelegateFuncs{
			OnTerminated: func(err error) {
				r := reentry{err: err, running: c.IsRunning()}
				r.startErr = c.Start(context.Background())
				results <- r
			},
		},
	})

	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	transport.session(0).chunks <- []byte{0xFF, 0xFF, 0xFF, 0xFF}

	select {
	case r := <-results:
		_, ok := stderrors.AsType[*errors.FrameTooLargeError](r.err)
		require.True(t, ok, "got %v", r.err)
		require.False(t, r.running)
		require.NoError(t, r.startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("delegate calling back into the communicator never returned")
	}

	require.True(t, c.IsRunning())
	require.Equal(t, transport.session(1).ID(), c.SessionID())
}

func TestCommunicator_Close(t *testing.T) {
	c, _, delegate := newTestCommunicator(t, config.DesyncDiscard)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	require.ErrorIs(t, c.Start(context.Background()), errors.ErrCommunicatorClosed)
	require.ErrorIs(t, c.Send(context.Background(), []byte("x")), errors.ErrCommunicatorClosed)
	delegate.requireNoTermination(t)
}

func TestCommunicator_CustomExecutor(t *testing.T) {
	transport := &fakeTransport{}
	queue := dispatch.NewSerialQueue()

	defer queue.Close()

	received := make(chan string, 1)

	c := New(&config.Options{
		Transport: transport,
		Executor:  queue,
		Delegate: dispatch.DelegateFuncs{
			OnMessage: func(data []byte) { received <- string(data) },
		},
	})

	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	transport.session(0).chunks <- frame.Encode([]byte("via executor"))

	select {
	case msg := <-received:
		require.Equal(t, "via executor", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
