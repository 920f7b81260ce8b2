package dispatch

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingDelegate captures delegate calls and detects overlapping calls.
type recordingDelegate struct {
	mu          sync.Mutex
	messages    []string
	terminated  []error
	inFlight    atomic.Int32
	overlapping atomic.Bool
}

func (r *recordingDelegate) enter() {
	if r.inFlight.Add(1) > 1 {
		r.overlapping.Store(true)
	}
}

func (r *recordingDelegate) MessageReceived(data []byte) {
	r.enter()
	defer r.inFlight.Add(-1)

	time.Sleep(100 * time.Microsecond)

	r.mu.Lock()
	r.messages = append(r.messages, string(data))
	r.mu.Unlock()
}

func (r *recordingDelegate) ProcessTerminated(err error) {
	r.enter()
	defer r.inFlight.Add(-1)

	r.mu.Lock()
	r.terminated = append(r.terminated, err)
	r.mu.Unlock()
}

// TestDispatcher_OrderAndSerialization tests that frames are delivered in
// submission order and never concurrently, even with concurrent emitters.
func TestDispatcher_OrderAndSerialization(t *testing.T) {
	delegate := &recordingDelegate{}
	d := NewDispatcher(slog.Default(), delegate, nil)

	for _, msg := range []string{"a", "b", "c", "d"} {
		d.Emit([]byte(msg))
	}

	var wg sync.WaitGroup

	for range 8 {
		wg.Go(func() {
			d.Emit([]byte("x"))
		})
	}

	wg.Wait()

	d.NotifyTerminated(nil)
	d.Close()

	require.False(t, delegate.overlapping.Load())
	require.Len(t, delegate.messages, 12)
	require.Equal(t, []string{"a", "b", "c", "d"}, delegate.messages[:4])
	require.Equal(t, []error{nil}, delegate.terminated)
}

// TestDispatcher_TerminationError tests that the termination cause reaches
// the delegate unchanged.
func TestDispatcher_TerminationError(t *testing.T) {
	cause := errors.New("host crashed")
	got := make(chan error, 1)

	d := NewDispatcher(slog.Default(), DelegateFuncs{
		OnTerminated: func(err error) { got <- err },
	}, nil)
	defer d.Close()

	d.NotifyTerminated(cause)

	select {
	case err := <-got:
		require.ErrorIs(t, err, cause)
	case <-time.After(time.Second):
		t.Fatal("termination not delivered")
	}
}

// TestDispatcher_NilDelegate tests that a dispatcher without a delegate
// silently discards events.
func TestDispatcher_NilDelegate(t *testing.T) {
	d := NewDispatcher(slog.Default(), nil, nil)

	d.Emit([]byte("dropped"))
	d.NotifyTerminated(errors.New("dropped"))
	d.Close()
}

type inlineExecutor struct {
	calls int
}

func (e *inlineExecutor) Submit(fn func()) {
	e.calls++
	fn()
}

// TestDispatcher_CustomExecutor tests that a supplied executor is used and
// left alone by Close.
func TestDispatcher_CustomExecutor(t *testing.T) {
	exec := &inlineExecutor{}

	var got []string

	d := NewDispatcher(slog.Default(), DelegateFuncs{
		OnMessage: func(data []byte) { got = append(got, string(data)) },
	}, exec)

	d.Emit([]byte("one"))
	d.Emit([]byte("two"))
	d.Close()

	require.Equal(t, 2, exec.calls)
	require.Equal(t, []string{"one", "two"}, got)
}

// TestSerialQueue_CloseDrains tests that Close runs queued work before
// returning and drops work submitted afterwards.
func TestSerialQueue_CloseDrains(t *testing.T) {
	q := NewSerialQueue()

	var count atomic.Int32

	block := make(chan struct{})

	q.Submit(func() { <-block })

	for range 100 {
		q.Submit(func() { count.Add(1) })
	}

	close(block)
	q.Close()

	require.Equal(t, int32(100), count.Load())

	q.Submit(func() { count.Add(1) })
	q.Close()

	require.Equal(t, int32(100), count.Load())
}
