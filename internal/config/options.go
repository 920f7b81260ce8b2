package config

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/nativemsg-go/internal/dispatch"
)

// DefaultStopTimeout is how long Stop waits after SIGTERM before killing the host.
const DefaultStopTimeout = 2 * time.Second

// Options configures the native messaging communicator.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ExecutablePath is the explicit path to the host executable.
	// If set, only this path is tried.
	ExecutablePath string

	// SearchNames are executable names looked up in PATH when
	// ExecutablePath is empty.
	SearchNames []string

	// CommonPaths are absolute paths tried after the PATH lookup.
	CommonPaths []string

	// Args is the fixed argument vector passed to the host, typically a
	// single string identifying the calling extension.
	Args []string

	// UIArgs are appended to Args when the host is started with UI.
	UIArgs []string

	// Env provides additional environment variables for the host process.
	Env map[string]string

	// Cwd sets the working directory for the host process.
	// If empty, the current working directory is used.
	Cwd string

	// MaxFrameSize is the read-side ceiling for a declared frame length.
	// If zero, frame.DefaultMaxFrameSize is used.
	MaxFrameSize int

	// StopTimeout bounds the grace period between SIGTERM and SIGKILL.
	// If zero, DefaultStopTimeout is used.
	StopTimeout time.Duration

	// DesyncPolicy selects what happens when a frame header exceeds
	// MaxFrameSize. The zero value is DesyncDiscard.
	DesyncPolicy DesyncPolicy

	// Delegate receives complete messages and termination notices.
	Delegate dispatch.Delegate

	// Executor is the execution context for Delegate calls.
	// If nil, a private serial queue is used.
	Executor dispatch.Executor

	// Stderr is called with each line the host writes to stderr.
	// If nil, the host inherits the parent's stderr.
	Stderr func(string)

	// MetricsRegisterer receives the transport's Prometheus collectors.
	// If nil, collectors are kept on a private registry.
	MetricsRegisterer prometheus.Registerer

	// Transport allows injecting a custom transport implementation.
	// If nil, the default ProcessTransport is created automatically.
	Transport Transport `json:"-"`
}

// StopTimeoutOrDefault returns StopTimeout, or DefaultStopTimeout when unset.
func (o *Options) StopTimeoutOrDefault() time.Duration {
	if o.StopTimeout <= 0 {
		return DefaultStopTimeout
	}

	return o.StopTimeout
}
