// Package subprocess provides the process-based transport for a native
// messaging host.
//
// ProcessTransport spawns the host with its stdin and stdout connected to
// anonymous pipes. A dedicated goroutine per session owns the stdout read
// loop and pushes raw chunks through a channel; framing is left to the
// consumer. Writes are serialized with a mutex.
package subprocess
