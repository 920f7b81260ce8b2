package subprocess

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/nativemsg-go/internal/config"
	"github.com/wagiedev/nativemsg-go/internal/errors"
	"github.com/wagiedev/nativemsg-go/internal/host"
)

const (
	// readBufferSize is the size of a single read from the host stdout.
	readBufferSize = 64 * 1024
	// chunkQueueSize is the number of raw reads buffered ahead of the consumer.
	chunkQueueSize = 16
	// maxStderrBufferSize caps the stderr kept for ProcessError reporting.
	// The Stderr callback still receives every line.
	maxStderrBufferSize = 64 * 1024
	// writeLeakTimeout bounds the wait for a write goroutine after stdin is closed.
	writeLeakTimeout = 1 * time.Second
)

// ProcessTransport implements config.Transport by spawning the host as a
// subprocess and talking to it over its stdin and stdout.
type ProcessTransport struct {
	log     *slog.Logger
	options *config.Options

	mu         sync.Mutex // Protects current and generation
	current    *processSession
	generation uint64

	writeMu sync.Mutex // Serializes writes so frames never interleave
}

// Compile-time verification that ProcessTransport implements the Transport interface.
var _ config.Transport = (*ProcessTransport)(nil)

// NewProcessTransport creates a transport. Host discovery is deferred to Start.
func NewProcessTransport(log *slog.Logger, options *config.Options) *ProcessTransport {
	if options == nil {
		options = &config.Options{}
	}

	return &ProcessTransport{
		log:     log.With("component", "process_transport"),
		options: options,
	}
}

// Start launches a new host session.
//
// Any live session is stopped first, so two sessions never share a process
// handle or a byte stream. Returns HostNotFoundError if the executable cannot
// be located, or LaunchError if the process fails to start.
func (t *ProcessTransport) Start(ctx context.Context, showUI bool) (config.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.log.Info("Stopping previous host session before restart", "session_id", t.current.id)
		t.current.terminate(t.options.StopTimeoutOrDefault())
		t.current = nil
	}

	t.log.Info("Starting native messaging host")

	path, err := host.NewDiscoverer(&host.Config{
		ExecutablePath: t.options.ExecutablePath,
		SearchNames:    t.options.SearchNames,
		CommonPaths:    t.options.CommonPaths,
		Logger:         t.log,
	}).Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover host: %w", err)
	}

	args := host.BuildArgs(t.options, showUI)
	t.log.Debug("Built host arguments", "path", path, "args", args)

	cwd := t.options.Cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
	}

	//nolint:gosec // G204: the host path and arguments are caller configuration
	cmd := exec.Command(path, args...)
	cmd.Dir = cwd
	cmd.Env = host.BuildEnvironment(t.options)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errors.LaunchError{Path: path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errors.LaunchError{Path: path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	var stderr io.ReadCloser

	if t.options.Stderr != nil {
		stderr, err = cmd.StderrPipe()
		if err != nil {
			return nil, &errors.LaunchError{Path: path, Err: fmt.Errorf("stderr pipe: %w", err)}
		}
	} else {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start host process", "path", path, "error", err)

		return nil, &errors.LaunchError{Path: path, Err: err}
	}

	t.generation++

	s := &processSession{
		id:             ulid.Make().String(),
		generation:     t.generation,
		cmd:            cmd,
		stdin:          stdin,
		stdout:         stdout,
		stderr:         stderr,
		stderrCallback: t.options.Stderr,
		chunks:         make(chan []byte, chunkQueueSize),
		stopped:        make(chan struct{}),
		done:           make(chan struct{}),
	}
	s.log = t.log.With("session_id", s.id, "generation", s.generation)

	go s.readLoop()

	t.current = s
	s.log.Info("Host process started", "pid", cmd.Process.Pid)

	return s, nil
}

// Write sends raw bytes to the live session's stdin.
//
// Writes are serialized, so two frames written concurrently never
// interleave on the pipe. If ctx is cancelled during a blocked write, stdin
// is closed to unblock it and later writes return ErrStdinClosed.
func (t *ProcessTransport) Write(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	s := t.current
	t.mu.Unlock()

	if s == nil {
		return errors.ErrTransportNotConnected
	}

	return s.write(ctx, data)
}

// Stop terminates the live session and waits for it to exit.
//
// The host receives SIGTERM and is killed if it is still running after the
// stop timeout. Calling Stop with nothing running is a no-op.
func (t *ProcessTransport) Stop() error {
	t.mu.Lock()
	s := t.current
	t.current = nil
	t.mu.Unlock()

	if s == nil {
		return nil
	}

	s.log.Info("Stopping host process")
	s.terminate(t.options.StopTimeoutOrDefault())

	return nil
}

// IsRunning returns true while the tracked session's process has not exited.
func (t *ProcessTransport) IsRunning() bool {
	t.mu.Lock()
	s := t.current
	t.mu.Unlock()

	if s == nil {
		return false
	}

	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// processSession is one spawned host and its pipes.
type processSession struct {
	id         string
	generation uint64
	log        *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	stderrCallback func(string)
	stderrMu       sync.Mutex
	stderrBuffer   strings.Builder

	chunks  chan []byte
	stopped chan struct{} // closed by terminate; unblocks chunk delivery
	done    chan struct{} // closed after cmd.Wait returns
	err     error

	stopping    atomic.Bool
	stopOnce    sync.Once
	stdinMu     sync.Mutex
	stdinClosed bool
}

// Compile-time verification that processSession implements config.Session.
var _ config.Session = (*processSession)(nil)

// ID implements config.Session.
func (s *processSession) ID() string { return s.id }

// Generation implements config.Session.
func (s *processSession) Generation() uint64 { return s.generation }

// Chunks implements config.Session.
func (s *processSession) Chunks() <-chan []byte { return s.chunks }

// Done implements config.Session.
func (s *processSession) Done() <-chan struct{} { return s.done }

// Err implements config.Session. Only valid after Done is closed.
func (s *processSession) Err() error { return s.err }

// readLoop owns the stdout pipe. Every read becomes one chunk; the loop
// ends on EOF or the first read error, which is folded into termination.
func (s *processSession) readLoop() {
	defer close(s.done)
	defer s.log.Debug("Read loop stopped")

	var stderrWg sync.WaitGroup

	if s.stderr != nil {
		stderrWg.Go(s.readStderr)
	}

	buf := make([]byte, readBufferSize)

	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			chunk := bytes.Clone(buf[:n])

			select {
			case s.chunks <- chunk:
			case <-s.stopped:
			}
		}

		if err != nil {
			if !stderrors.Is(err, io.EOF) && !s.stopping.Load() {
				s.log.Debug("Host stdout read failed", "error", err)
			}

			break
		}
	}

	close(s.chunks)

	// Stderr reads must complete before Wait closes the pipe.
	stderrWg.Wait()

	waitErr := s.cmd.Wait()
	s.err = s.exitError(waitErr)

	if s.stopping.Load() {
		s.log.Debug("Host process terminated during shutdown")
	} else if s.err != nil {
		s.log.Error("Host process exited with error", "error", s.err)
	} else {
		s.log.Info("Host process exited")
	}
}

func (s *processSession) readStderr() {
	scanner := bufio.NewScanner(s.stderr)

	for scanner.Scan() {
		line := scanner.Text()

		s.stderrMu.Lock()

		if s.stderrBuffer.Len() < maxStderrBufferSize {
			if s.stderrBuffer.Len() > 0 {
				s.stderrBuffer.WriteString("\n")
			}

			s.stderrBuffer.WriteString(line)
		}

		s.stderrMu.Unlock()

		s.stderrCallback(line)
	}

	if err := scanner.Err(); err != nil {
		s.log.Debug("Stderr scanner error", "error", err)
	}
}

func (s *processSession) exitError(waitErr error) error {
	if waitErr == nil {
		return nil
	}

	s.stderrMu.Lock()
	stderr := strings.TrimSpace(s.stderrBuffer.String())
	s.stderrMu.Unlock()

	exitCode := -1

	if exitErr, ok := stderrors.AsType[*exec.ExitError](waitErr); ok {
		exitCode = exitErr.ExitCode()
	}

	return &errors.ProcessError{
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      waitErr,
	}
}

func (s *processSession) write(ctx context.Context, data []byte) error {
	s.stdinMu.Lock()
	closed := s.stdinClosed
	s.stdinMu.Unlock()

	if closed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.log.Debug("Writing to host", "data_len", len(data))

	done := make(chan error, 1)

	go func() {
		_, err := s.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Error("Failed to write to host", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		s.log.Debug("Context cancelled during write, closing stdin")
		s.closeStdin()

		select {
		case <-done:
		case <-time.After(writeLeakTimeout):
			s.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

func (s *processSession) closeStdin() {
	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()

	if !s.stdinClosed {
		_ = s.stdin.Close()
		s.stdinClosed = true
	}
}

// terminate asks the host to exit and waits for it, escalating to SIGKILL
// after timeout.
func (s *processSession) terminate(timeout time.Duration) {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		close(s.stopped)
		s.closeStdin()

		if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			if !stderrors.Is(err, os.ErrProcessDone) {
				s.log.Debug("SIGTERM failed, killing host", "error", err)
				_ = s.cmd.Process.Kill()
			}
		}
	})

	select {
	case <-s.done:
		return
	case <-time.After(timeout):
	}

	s.log.Warn("Host did not exit after SIGTERM, killing", "pid", s.cmd.Process.Pid)

	if err := s.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		s.log.Error("Failed to kill host process", "error", err)
	}

	<-s.done
}
