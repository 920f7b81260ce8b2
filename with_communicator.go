package nativemsg

import (
	"context"
	"fmt"
)

// WithCommunicator manages communicator lifecycle with automatic cleanup.
//
// This helper creates a communicator, starts the host, executes the
// callback function, and ensures proper cleanup via Close() when done.
//
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := nativemsg.WithCommunicator(ctx, func(c nativemsg.Communicator) error {
//	    return c.SendJSON(ctx, map[string]any{"command": "bw-status"})
//	},
//	    nativemsg.WithLogger(log),
//	    nativemsg.WithDelegate(delegate),
//	)
func WithCommunicator(ctx context.Context, fn func(Communicator) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	comm := NewCommunicator(opts...)

	defer func() {
		if closeErr := comm.Close(); closeErr != nil {
			log.Warn("failed to close communicator", "error", closeErr)
		}
	}()

	if err := comm.Start(ctx); err != nil {
		return fmt.Errorf("failed to start communicator: %w", err)
	}

	return fn(comm)
}
