// Package nativemsg implements the native messaging transport used to talk
// to a local helper process over its standard streams.
//
// Every message on the wire is a 4-byte little-endian length followed by
// that many payload bytes. The package spawns the host, frames outgoing
// payloads, reassembles incoming frames from arbitrary read boundaries and
// delivers them, one complete payload at a time, to a Delegate.
//
// # Basic Usage
//
//	comm := nativemsg.NewCommunicator(
//	    nativemsg.WithExecutablePath("/usr/lib/bitwarden/desktop_proxy"),
//	    nativemsg.WithDelegate(nativemsg.DelegateFuncs{
//	        OnMessage: func(data []byte) {
//	            fmt.Println(string(data))
//	        },
//	        OnTerminated: func(err error) {
//	            log.Printf("host exited: %v", err)
//	        },
//	    }),
//	)
//	defer comm.Close()
//
//	if err := comm.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := comm.SendJSON(ctx, map[string]any{"command": "bw-status"}); err != nil {
//	    log.Fatal(err)
//	}
//
// # Delivery
//
// Delegate calls are made from a single serial queue, in wire order, and
// never overlap. Supply WithExecutor to run them elsewhere.
//
// ProcessTerminated fires only when the host exits on its own. Restarting
// with Start, or calling Stop or Close, does not notify the delegate.
//
// # Corrupt Streams
//
// A header that declares more than the maximum frame size (200,000 bytes
// by default) means the stream has lost sync. By default the buffered bytes
// are discarded and reading continues. WithDesyncPolicy(DesyncTerminate)
// stops the host instead and reports a *FrameTooLargeError.
//
// # Error Handling
//
// Launch failures are returned from Start:
//
//	if err := comm.Start(ctx); err != nil {
//	    if notFound, ok := errors.AsType[*nativemsg.HostNotFoundError](err); ok {
//	        log.Printf("searched %v", notFound.SearchedPaths)
//	    }
//	}
//
// Sending before Start returns ErrNotStarted. Sending after Close returns
// ErrCommunicatorClosed.
package nativemsg
