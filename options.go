package nativemsg

import (
	"log/slog"
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDelegate sets the receiver of messages and termination notices.
func WithDelegate(delegate Delegate) Option {
	return func(o *Options) {
		o.Delegate = delegate
	}
}

// WithExecutor runs delegate calls on executor instead of the built-in
// serial queue. The executor must preserve submission order.
func WithExecutor(executor Executor) Option {
	return func(o *Options) {
		o.Executor = executor
	}
}

// ===== Host Process =====

// WithExecutablePath sets the explicit path to the host binary.
// If set, no other location is searched.
func WithExecutablePath(path string) Option {
	return func(o *Options) {
		o.ExecutablePath = path
	}
}

// WithSearchNames sets the binary names looked up in PATH.
func WithSearchNames(names ...string) Option {
	return func(o *Options) {
		o.SearchNames = names
	}
}

// WithCommonPaths sets absolute fallback locations checked after PATH.
func WithCommonPaths(paths ...string) Option {
	return func(o *Options) {
		o.CommonPaths = paths
	}
}

// WithArgs sets the host argument vector.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = args
	}
}

// WithUIArgs sets extra arguments appended by StartWithUI.
func WithUIArgs(args ...string) Option {
	return func(o *Options) {
		o.UIArgs = args
	}
}

// WithEnv adds environment variables for the host process.
// Repeated calls merge, later values win.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		maps.Copy(o.Env, env)
	}
}

// WithCwd sets the working directory for the host process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithStderr sets a callback that receives each stderr line from the host.
// Without it, host stderr is passed through to this process's stderr.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithStopTimeout sets how long Stop waits after SIGTERM before killing
// the host. Defaults to 2 seconds.
func WithStopTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.StopTimeout = timeout
	}
}

// ===== Framing =====

// WithMaxFrameSize sets the largest frame length accepted from the host.
// Values <= 0 select the 200,000 byte default.
func WithMaxFrameSize(size int) Option {
	return func(o *Options) {
		o.MaxFrameSize = size
	}
}

// WithDesyncPolicy selects the reaction to an oversized frame header.
func WithDesyncPolicy(policy DesyncPolicy) Option {
	return func(o *Options) {
		o.DesyncPolicy = policy
	}
}

// ===== Advanced =====

// WithMetricsRegisterer registers transport metrics on reg.
// If not set, metrics are kept on a private registry.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.MetricsRegisterer = reg
	}
}

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
